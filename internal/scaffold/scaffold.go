// Package scaffold implements `forge new`: it renders the embedded starter
// templates into a fresh project (or a fresh workspace member) directory,
// mirroring the teacher's thin templated-config-write style rather than any
// domain-specific build logic.
package scaffold

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"text/template"

	"github.com/forgebuild/forge/internal/ferror"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Options describes one `forge new` invocation.
type Options struct {
	Name      string // member/project name, also the [build].target value
	Dir       string // directory to create the project (or member) under
	Workspace bool   // scaffold Dir as a workspace root with Name as its sole member
	CXX       bool   // main.cpp instead of main.c
	Compiler  string // defaults to "cc" or "c++"
}

type templateData struct {
	Name     string
	Compiler string
}

// New renders the starter project layout under opts.Dir.
func New(opts Options) error {
	if opts.Compiler == "" {
		if opts.CXX {
			opts.Compiler = "c++"
		} else {
			opts.Compiler = "cc"
		}
	}

	data := templateData{Name: opts.Name, Compiler: opts.Compiler}

	projectDir := opts.Dir
	if opts.Workspace {
		if err := writeRendered("workspace-root.toml.tmpl", filepath.Join(opts.Dir, "forge.toml"), data); err != nil {
			return err
		}
		projectDir = filepath.Join(opts.Dir, opts.Name)
	}

	if err := os.MkdirAll(filepath.Join(projectDir, "src"), 0o755); err != nil {
		return ferror.Wrap(ferror.ScanIO, err, "creating %s", projectDir)
	}
	if err := os.MkdirAll(filepath.Join(projectDir, "include"), 0o755); err != nil {
		return ferror.Wrap(ferror.ScanIO, err, "creating %s/include", projectDir)
	}

	if err := writeRendered("forge.toml.tmpl", filepath.Join(projectDir, "forge.toml"), data); err != nil {
		return err
	}

	mainName, mainTmpl := "main.c", "main.c.tmpl"
	if opts.CXX {
		mainName, mainTmpl = "main.cpp", "main.cpp.tmpl"
	}
	return writeRendered(mainTmpl, filepath.Join(projectDir, "src", mainName), data)
}

func writeRendered(templateName, destPath string, data templateData) error {
	raw, err := fs.ReadFile(templatesFS, "templates/"+templateName)
	if err != nil {
		return ferror.Wrap(ferror.Unknown, err, "reading embedded template %s", templateName)
	}
	tmpl, err := template.New(templateName).Parse(string(raw))
	if err != nil {
		return ferror.Wrap(ferror.Unknown, err, "parsing embedded template %s", templateName)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return ferror.Wrap(ferror.ScanIO, err, "creating %s", destPath)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return ferror.Wrap(ferror.Unknown, err, "rendering %s", destPath)
	}
	return nil
}
