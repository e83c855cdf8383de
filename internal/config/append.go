package config

import (
	"fmt"
	"os"
)

// AppendProjects appends a default entry for each id to the test plan at
// path. The file is created if it does not exist yet.
func AppendProjects(path string, ids []string) (err error) {
	if len(ids) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for _, id := range ids {
		if _, err := fmt.Fprint(f, ProjectRecord(id)); err != nil {
			return err
		}
	}
	return nil
}

// ProjectRecord is the YAML block written for an added project.
func ProjectRecord(id string) string {
	return "\n" + id + ":\n  install: default\n  script: default\n"
}
