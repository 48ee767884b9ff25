package regmap

import (
	"embed"
	"fmt"
	"path"
	"strings"
)

//go:embed maps/*.yaml
var builtin embed.FS

// Builtin loads one of the register maps shipped with the module.
func Builtin(name string) (*Device, error) {
	data, err := builtin.ReadFile(path.Join("maps", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("no builtin register map %q", name)
	}
	return Parse(data)
}

// BuiltinNames lists the shipped register maps.
func BuiltinNames() []string {
	entries, _ := builtin.ReadDir("maps")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	return names
}

// Open loads a builtin map by name or a map file by path.
func Open(nameOrPath string) (*Device, error) {
	if strings.HasSuffix(nameOrPath, ".yaml") || strings.HasSuffix(nameOrPath, ".yml") {
		return LoadFile(nameOrPath)
	}
	return Builtin(nameOrPath)
}
