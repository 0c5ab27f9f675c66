package patch

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLPatch is the on-disk encoding of a Patch, mirroring the nesting the
// teacher uses for per-core programs (core.YAMLRoot/ArrayConfig/
// YAMLCoreProgram): a thin, tag-annotated mirror of the in-memory model
// that LoadPatchFromYAML converts into a Patch.
type YAMLPatch struct {
	Blocks []YAMLBlock `yaml:"blocks"`
	Edges  []YAMLEdge  `yaml:"edges"`
}

// YAMLBlock is one block entry in a YAMLPatch.
type YAMLBlock struct {
	ID      string                      `yaml:"id"`
	Type    string                      `yaml:"type"`
	Config  map[string]any              `yaml:"config,omitempty"`
	Vararg  map[string][]YAMLVarargConn `yaml:"vararg,omitempty"`
}

// YAMLVarargConn is one vararg connection entry.
type YAMLVarargConn struct {
	SourceAddress string  `yaml:"source_address"`
	SortKey       float64 `yaml:"sort_key"`
}

// YAMLEdge is one edge entry in a YAMLPatch.
type YAMLEdge struct {
	ID          string `yaml:"id"`
	SourceBlock string `yaml:"source_block"`
	SourcePort  string `yaml:"source_port"`
	DestBlock   string `yaml:"dest_block"`
	DestPort    string `yaml:"dest_port"`
}

// LoadPatchFromYAML reads and parses a YAML-encoded patch file.
func LoadPatchFromYAML(path string) (*Patch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("patch: failed to read patch file %s: %w", path, err)
	}
	return ParsePatchYAML(data)
}

// ParsePatchYAML parses YAML-encoded patch bytes into a Patch.
func ParsePatchYAML(data []byte) (*Patch, error) {
	var root YAMLPatch
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("patch: failed to parse patch YAML: %w", err)
	}

	p := New()
	for _, yb := range root.Blocks {
		if err := p.AddBlock(Block{ID: yb.ID, Type: yb.Type, Config: yb.Config}); err != nil {
			return nil, fmt.Errorf("patch: %w", err)
		}
	}
	for _, ye := range root.Edges {
		if err := p.AddEdge(Edge{
			ID: ye.ID, SourceBlock: ye.SourceBlock, SourcePort: ye.SourcePort,
			DestBlock: ye.DestBlock, DestPort: ye.DestPort,
		}); err != nil {
			return nil, fmt.Errorf("patch: %w", err)
		}
	}
	for _, yb := range root.Blocks {
		for port, conns := range yb.Vararg {
			for _, c := range conns {
				if err := p.AddVarargConnection(yb.ID, port, VarargConnection{
					SourceAddress: c.SourceAddress, SortKey: c.SortKey,
				}); err != nil {
					return nil, fmt.Errorf("patch: %w", err)
				}
			}
		}
	}
	return p, nil
}

// SavePatchToYAML serializes p to path in the canonical YAML encoding, used
// by the round-trip property in spec.md §8.
func SavePatchToYAML(p *Patch, path string) error {
	data, err := MarshalPatchYAML(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("patch: failed to write patch file %s: %w", path, err)
	}
	return nil
}

// MarshalPatchYAML serializes p to its canonical YAML encoding.
func MarshalPatchYAML(p *Patch) ([]byte, error) {
	root := YAMLPatch{}
	for _, b := range p.Blocks() {
		yb := YAMLBlock{ID: b.ID, Type: b.Type, Config: b.Config}
		for port, conns := range b.varargInputs {
			if len(conns) == 0 {
				continue
			}
			if yb.Vararg == nil {
				yb.Vararg = map[string][]YAMLVarargConn{}
			}
			for _, c := range conns {
				yb.Vararg[port] = append(yb.Vararg[port], YAMLVarargConn{
					SourceAddress: c.SourceAddress, SortKey: c.SortKey,
				})
			}
		}
		root.Blocks = append(root.Blocks, yb)
	}
	for _, e := range p.Edges() {
		root.Edges = append(root.Edges, YAMLEdge{
			ID: e.ID, SourceBlock: e.SourceBlock, SourcePort: e.SourcePort,
			DestBlock: e.DestBlock, DestPort: e.DestPort,
		})
	}
	data, err := yaml.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("patch: failed to marshal patch: %w", err)
	}
	return data, nil
}
