package config

import (
	"bytes"
	"fmt"
	"maps"
	"os"

	"gopkg.in/yaml.v3"
)

// Overlay is the optional YAML file that adjusts the default spec.
// Unset fields keep their defaults. The subscription's delivery parameters are not part of it.
type Overlay struct {
	Region         string            `yaml:"region,omitempty"`
	Zone           string            `yaml:"zone,omitempty"`
	Labels         map[string]string `yaml:"labels,omitempty"`
	APIs           []string          `yaml:"apis,omitempty"`
	ServiceAccount struct {
		AccountID    string   `yaml:"account_id,omitempty"`
		DisplayName  string   `yaml:"display_name,omitempty"`
		ProjectRoles []string `yaml:"project_roles,omitempty"`
	} `yaml:"service_account,omitempty"`
	Buckets struct {
		Staging      string `yaml:"staging,omitempty"`
		Temp         string `yaml:"temp,omitempty"`
		StorageClass string `yaml:"storage_class,omitempty"`
		Protect      bool   `yaml:"teardown_protection,omitempty"`
	} `yaml:"buckets,omitempty"`
	Topics                Topics `yaml:"topics,omitempty"`
	Subscription          string `yaml:"subscription,omitempty"`
	DeadLetterAgentGrants *bool  `yaml:"dead_letter_agent_grants,omitempty"`
	Pipeline              struct {
		PackageDir     string   `yaml:"package_dir,omitempty"`
		InstallCommand []string `yaml:"install_command,omitempty"`
		EntryPoint     string   `yaml:"entry_point,omitempty"`
	} `yaml:"pipeline,omitempty"`
}

// ParseOverlay decodes an overlay document. Unknown keys are rejected.
func ParseOverlay(data []byte) (*Overlay, error) {
	var o Overlay
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil {
		return nil, fmt.Errorf("failed to parse overlay: %w", err)
	}
	return &o, nil
}

// ApplyOverlayFile reads the YAML file at path and applies it to the deployment.
func (d *DeploymentSpec) ApplyOverlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read overlay file %s: %w", path, err)
	}
	overlay, err := ParseOverlay(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	d.ApplyOverlay(overlay)
	return nil
}

// ApplyOverlay copies every set field of the overlay onto the deployment.
func (d *DeploymentSpec) ApplyOverlay(o *Overlay) {
	if o == nil {
		return
	}
	setString(&d.Region, o.Region)
	setString(&d.Zone, o.Zone)
	if len(o.Labels) > 0 {
		if d.Labels == nil {
			d.Labels = make(map[string]string, len(o.Labels))
		}
		maps.Copy(d.Labels, o.Labels)
	}
	if len(o.APIs) > 0 {
		d.APIs = append([]string(nil), o.APIs...)
	}

	setString(&d.ServiceAccount.AccountID, o.ServiceAccount.AccountID)
	setString(&d.ServiceAccount.DisplayName, o.ServiceAccount.DisplayName)
	if len(o.ServiceAccount.ProjectRoles) > 0 {
		d.ServiceAccount.ProjectRoles = append([]string(nil), o.ServiceAccount.ProjectRoles...)
	}

	setString(&d.StagingBucket.Name, o.Buckets.Staging)
	setString(&d.TempBucket.Name, o.Buckets.Temp)
	setString(&d.StagingBucket.StorageClass, o.Buckets.StorageClass)
	setString(&d.TempBucket.StorageClass, o.Buckets.StorageClass)
	if o.Buckets.Protect {
		d.StagingBucket.TeardownProtection = true
		d.TempBucket.TeardownProtection = true
	}
	// Buckets always live in the deployment region.
	d.StagingBucket.Location = d.Region
	d.TempBucket.Location = d.Region

	setString(&d.Topics.Input, o.Topics.Input)
	setString(&d.Topics.Output, o.Topics.Output)
	setString(&d.Topics.Anomalies, o.Topics.Anomalies)
	setString(&d.Topics.Analytics, o.Topics.Analytics)
	setString(&d.Topics.DeadLetter, o.Topics.DeadLetter)
	setString(&d.Subscription, o.Subscription)
	if o.DeadLetterAgentGrants != nil {
		d.DeadLetterAgentGrants = *o.DeadLetterAgentGrants
	}

	setString(&d.Pipeline.PackageDir, o.Pipeline.PackageDir)
	setString(&d.Pipeline.EntryPoint, o.Pipeline.EntryPoint)
	if len(o.Pipeline.InstallCommand) > 0 {
		d.Pipeline.InstallCommand = append([]string(nil), o.Pipeline.InstallCommand...)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
