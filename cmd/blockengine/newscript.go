package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"blockengine/internal/config"
	"blockengine/internal/host"
)

const scriptTmpl = `-- {{.Name}}
local part = Instance.new("Part")
part.Name = "{{.Name}}"
part.Anchored = true
part.Position = Vector3.new(0, 4, 0)
part.Parent = workspace

for _ = 1, 120 do
	local dt = task.wait()
	part.Rotation = part.Rotation + Vector3.new(0, 90 * dt, 0)
end
`

const testTmpl = `-- {{.Name}}
local folder = Instance.new("Folder", workspace)
folder.Name = "{{.Name}}"
assert(workspace:FindFirstChild("{{.Name}}") == folder, "folder not found")

task.wait(1)
folder:Destroy()
assert(workspace:FindFirstChild("{{.Name}}") == nil, "destroyed folder still parented")
`

// cmdNew writes a Lua script skeleton, or a test skeleton into the
// configured test directory.
func cmdNew(args []string) int {
	fs, c := newFlags("new")
	test := fs.Bool("test", false, "create a test in the configured test directory")
	dir := fs.String("dir", "scripts", "output directory for scripts")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s new [-test] [-dir d] <ScriptName>\n", appName)
		return 2
	}

	name := fs.Arg(0)
	if name == "" || !unicode.IsUpper(rune(name[0])) {
		fmt.Fprintf(os.Stderr, "%s: script name must start with an uppercase letter\n", appName)
		return 2
	}

	content, outDir := scriptTmpl, *dir
	if *test {
		boot := host.NewLogger(config.Default().Log, os.Stderr)
		cfg, err := config.Load(c.configPath, boot)
		if err != nil {
			return fail(boot, "load config", err)
		}
		content, outDir = testTmpl, cfg.Scripts.TestDir
	}
	outPath := filepath.Join(outDir, toSnakeCase(name)+".lua")
	if _, err := os.Stat(outPath); err == nil {
		fmt.Fprintf(os.Stderr, "%s: %s already exists\n", appName, outPath)
		return 1
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 1
	}
	content = strings.ReplaceAll(content, "{{.Name}}", name)
	if err := os.WriteFile(outPath, []byte(content), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "%s: writing %s: %v\n", appName, outPath, err)
		return 1
	}
	fmt.Printf("Created %s\n", outPath)
	return 0
}

func toSnakeCase(s string) string {
	var result []rune
	for i, r := range s {
		if unicode.IsUpper(r) && i > 0 {
			result = append(result, '_')
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}
