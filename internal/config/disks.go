package config

import (
	"fmt"
	"os"

	"tabula/internal/blob"

	"gopkg.in/yaml.v3"
)

// DiskConfig is one named storage location from the disks yaml file.
type DiskConfig struct {
	Name   string `yaml:"name"`
	Driver string `yaml:"driver"` // "local" | "s3"

	// local
	Root string `yaml:"root,omitempty"`

	// s3
	Endpoint  string `yaml:"endpoint,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	UseSSL    bool   `yaml:"use_ssl,omitempty"`
}

type disksFile struct {
	Disks []DiskConfig `yaml:"disks"`
}

// BuildRegistry assembles the storage registry from the disks yaml. Without
// a file, a single local disk rooted at filesRoot is registered.
func BuildRegistry(disksPath, filesRoot string) (*blob.Registry, error) {
	reg := blob.NewRegistry()

	if disksPath == "" {
		reg.Register("local", &blob.LocalDriver{Root: filesRoot})
		return reg, nil
	}

	data, err := os.ReadFile(disksPath)
	if err != nil {
		return nil, fmt.Errorf("read disks file: %w", err)
	}
	var df disksFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("parse disks file: %w", err)
	}
	if len(df.Disks) == 0 {
		return nil, fmt.Errorf("disks file %s declares no disks", disksPath)
	}

	for _, d := range df.Disks {
		switch d.Driver {
		case "local":
			root := d.Root
			if root == "" {
				root = filesRoot
			}
			reg.Register(d.Name, &blob.LocalDriver{Root: root})
		case "s3":
			drv, err := blob.NewS3Driver(blob.S3Config{
				Endpoint:  d.Endpoint,
				Region:    d.Region,
				Bucket:    d.Bucket,
				Prefix:    d.Prefix,
				AccessKey: d.AccessKey,
				SecretKey: d.SecretKey,
				UseSSL:    d.UseSSL,
			})
			if err != nil {
				return nil, fmt.Errorf("disk %s: %w", d.Name, err)
			}
			reg.Register(d.Name, drv)
		default:
			return nil, fmt.Errorf("disk %s: unknown driver %q", d.Name, d.Driver)
		}
	}
	return reg, nil
}
