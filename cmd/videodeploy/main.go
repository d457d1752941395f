// Command videodeploy provisions the Google Cloud resources of the video analytics
// streaming pipeline and runs the pipeline's own setup.
package main

import "github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/cmd/videodeploy/cmd"

func main() {
	cmd.Execute()
}
