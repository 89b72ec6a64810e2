// Package scaffold writes the starter configuration of a new esasync
// deployment: a YAML file with the non-secret settings and a .env file with
// freshly generated secrets.
package scaffold

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
)

// Templates contains all scaffold template files.
// Files use Go text/template syntax and have a .tmpl suffix.
//
//go:embed all:templates
var Templates embed.FS

// ErrExists is returned when a file Write would create is already present.
var ErrExists = errors.New("scaffold: file already exists")

// Data holds the template variables passed to every scaffold template.
type Data struct {
	Team                   string
	Target                 string
	PrivateCategoryPattern string
	SiteName               string
	SiteURL                string
	DatabasePath           string
	WebhookSecret          string
	SessionSecret          string
}

var funcs = template.FuncMap{
	"quote": strconv.Quote,
}

// Write renders every template into dir and returns the created paths. A
// template named dotenv becomes .env. Existing files are never overwritten:
// Write fails with ErrExists before creating anything.
func Write(dir string, data Data) ([]string, error) {
	const root = "templates"

	type output struct {
		path string
		tmpl *template.Template
	}
	var outputs []output
	err := fs.WalkDir(Templates, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		outPath := filepath.Join(dir, strings.TrimSuffix(relPath, ".tmpl"))
		if filepath.Base(outPath) == "dotenv" {
			outPath = filepath.Join(filepath.Dir(outPath), ".env")
		}
		if _, err := os.Stat(outPath); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, outPath)
		}

		content, err := Templates.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		tmpl, err := template.New(filepath.Base(path)).Funcs(funcs).Option("missingkey=error").Parse(string(content))
		if err != nil {
			return fmt.Errorf("parse template %s: %w", path, err)
		}
		outputs = append(outputs, output{path: outPath, tmpl: tmpl})
		return nil
	})
	if err != nil {
		return nil, err
	}

	created := make([]string, 0, len(outputs))
	for _, o := range outputs {
		if err := os.MkdirAll(filepath.Dir(o.path), 0o755); err != nil {
			return created, err
		}
		if err := render(o.path, o.tmpl, data); err != nil {
			return created, err
		}
		created = append(created, o.path)
	}
	return created, nil
}

func render(path string, tmpl *template.Template, data Data) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("execute template %s: %w", tmpl.Name(), err)
	}
	return nil
}
