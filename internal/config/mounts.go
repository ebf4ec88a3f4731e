package config

import (
	"fmt"
	"log"

	"github.com/razvandimescu/peekvfs/internal/vfs"
)

// OpenRegistry opens every configured mount. Directory mounts apply the
// configured ignore patterns on top of their own ignore file.
func (c *Config) OpenRegistry() (*vfs.Registry, error) {
	reg := vfs.NewRegistry()
	for _, m := range c.Mounts {
		b, err := c.openMount(m)
		if err != nil {
			reg.Close()
			return nil, fmt.Errorf("mount %q: %w", m.Name, err)
		}
		reg.Add(vfs.Mount(m.Name), b)
	}
	return reg, nil
}

func (c *Config) openMount(m MountConfig) (vfs.Backend, error) {
	switch m.Type {
	case MountDir:
		dm, err := vfs.NewDirMount(m.Path, m.ReadOnly, c.Ignore)
		if err != nil {
			return nil, err
		}
		log.Printf("Mounted %s at %s", m.Name, dm.Root())
		return dm, nil
	case MountSQLite:
		sm, err := vfs.OpenSQLMount(m.Path, m.ReadOnly)
		if err != nil {
			return nil, err
		}
		log.Printf("Mounted %s from database %s", m.Name, m.Path)
		return sm, nil
	default:
		return nil, fmt.Errorf("invalid mount type %q", m.Type)
	}
}
