// Package templates holds the boilerplate used to seed new files and projects.
package templates

import (
	"fmt"
	"path"
	"strings"
)

// Language describes a supported file language.
type Language struct {
	Name        string
	Extensions  []string
	Comment     string // line comment prefix, empty if none
	Boilerplate string
}

var languages = []Language{
	{Name: "python", Extensions: []string{".py"}, Comment: "#",
		Boilerplate: "# Python\nprint(\"Hello, World!\")\n"},
	{Name: "javascript", Extensions: []string{".js", ".mjs", ".cjs"}, Comment: "//",
		Boilerplate: "// JavaScript\nconsole.log(\"Hello, World!\");\n"},
	{Name: "typescript", Extensions: []string{".ts", ".tsx"}, Comment: "//",
		Boilerplate: "// TypeScript\nconst message: string = \"Hello, World!\";\nconsole.log(message);\n"},
	{Name: "go", Extensions: []string{".go"}, Comment: "//",
		Boilerplate: "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"Hello, World!\")\n}\n"},
	{Name: "java", Extensions: []string{".java"}, Comment: "//",
		Boilerplate: "public class Main {\n    public static void main(String[] args) {\n        System.out.println(\"Hello, World!\");\n    }\n}\n"},
	{Name: "c", Extensions: []string{".c", ".h"}, Comment: "//",
		Boilerplate: "#include <stdio.h>\n\nint main(void) {\n    printf(\"Hello, World!\\n\");\n    return 0;\n}\n"},
	{Name: "cpp", Extensions: []string{".cpp", ".cc", ".hpp"}, Comment: "//",
		Boilerplate: "#include <iostream>\n\nint main() {\n    std::cout << \"Hello, World!\" << std::endl;\n    return 0;\n}\n"},
	{Name: "rust", Extensions: []string{".rs"}, Comment: "//",
		Boilerplate: "fn main() {\n    println!(\"Hello, World!\");\n}\n"},
	{Name: "ruby", Extensions: []string{".rb"}, Comment: "#",
		Boilerplate: "# Ruby\nputs \"Hello, World!\"\n"},
	{Name: "html", Extensions: []string{".html", ".htm"},
		Boilerplate: "<!DOCTYPE html>\n<html>\n<head>\n  <title>Hello</title>\n</head>\n<body>\n  <h1>Hello, World!</h1>\n</body>\n</html>\n"},
	{Name: "css", Extensions: []string{".css"},
		Boilerplate: "/* Styles */\nbody {\n  font-family: sans-serif;\n}\n"},
	{Name: "markdown", Extensions: []string{".md", ".markdown"},
		Boilerplate: "# Title\n"},
	{Name: "json", Extensions: []string{".json"},
		Boilerplate: "{}\n"},
	{Name: "shell", Extensions: []string{".sh", ".bash"}, Comment: "#",
		Boilerplate: "#!/bin/sh\necho \"Hello, World!\"\n"},
}

// PlainText is the language of files with an unknown extension.
const PlainText = "plaintext"

var byName, byExt = func() (map[string]Language, map[string]string) {
	names := make(map[string]Language, len(languages))
	exts := make(map[string]string)
	for _, l := range languages {
		names[l.Name] = l
		for _, e := range l.Extensions {
			exts[e] = l.Name
		}
	}
	return names, exts
}()

// Lookup returns the language entry for name.
func Lookup(name string) (Language, bool) {
	l, ok := byName[strings.ToLower(name)]
	return l, ok
}

// Detect infers a language from a file name's extension.
func Detect(filename string) string {
	if lang, ok := byExt[strings.ToLower(path.Ext(filename))]; ok {
		return lang
	}
	return PlainText
}

// Content returns the seed content for a new file in language. Unknown
// languages get a comment-only placeholder.
func Content(language string) string {
	if l, ok := Lookup(language); ok {
		return l.Boilerplate
	}
	return fmt.Sprintf("// New %s file\n", language)
}

// Names returns the supported language names in table order.
func Names() []string {
	out := make([]string, len(languages))
	for i, l := range languages {
		out[i] = l.Name
	}
	return out
}

// StarterFile is a file seeded into every new project.
type StarterFile struct {
	Name     string
	Language string
	Content  string
}

// Starter files, in creation order.
const (
	ReadmeName = "README.md"
	MainName   = "main.py"
)

// StarterFiles returns the files of a new project named projectName.
func StarterFiles(projectName string) []StarterFile {
	return []StarterFile{
		{
			Name:     ReadmeName,
			Language: "markdown",
			Content:  fmt.Sprintf("# %s\n\nWelcome to your new project!\n", projectName),
		},
		{
			Name:     MainName,
			Language: "python",
			Content:  "# Welcome to your new project\nprint(\"Hello, World!\")\n",
		},
	}
}
