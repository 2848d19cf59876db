package memdir

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/KilimcininKorOglu/dirquery/internal/directory"
)

// fixture is the YAML layout of a directory dump:
//
//	entries:
//	  - dn: cn=alice,ou=people,dc=example,dc=com
//	    attributes:
//	      objectClass: [top, person]
//	      cn: alice
//	      jpegPhoto: !!binary /9j/4AAQ
type fixture struct {
	Entries []fixtureEntry `yaml:"entries"`
}

type fixtureEntry struct {
	DN         string    `yaml:"dn"`
	Attributes yaml.Node `yaml:"attributes"`
}

// LoadFile reads a YAML fixture from path into a new Directory.
func LoadFile(path string, opts ...Option) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("memdir: open fixture: %w", err)
	}
	defer f.Close()

	d, err := Load(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Load reads a YAML fixture into a new Directory.
func Load(r io.Reader, opts ...Option) (*Directory, error) {
	d := New(opts...)
	if err := d.LoadFixture(r); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadFixture adds the entries of a YAML fixture. Attribute order follows
// the document.
func (d *Directory) LoadFixture(r io.Reader) error {
	var fx fixture
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil && err != io.EOF {
		return fmt.Errorf("memdir: decode fixture: %w", err)
	}

	for i, fe := range fx.Entries {
		e, err := fe.entry()
		if err != nil {
			return fmt.Errorf("memdir: entry %d: %w", i, err)
		}
		if err := d.Add(e); err != nil {
			return fmt.Errorf("memdir: entry %q: %w", fe.DN, err)
		}
	}
	d.logger.Debug("fixture loaded", "entries", len(fx.Entries))
	return nil
}

func (fe fixtureEntry) entry() (*directory.Entry, error) {
	e := directory.NewEntry(fe.DN)
	node := &fe.Attributes
	if node.Kind == 0 {
		return e, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: attributes must be a mapping", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		values, err := nodeValues(node.Content[i+1])
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		e.Attributes.Add(name, values...)
	}
	return e, nil
}

func nodeValues(n *yaml.Node) ([][]byte, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		v, err := scalarValue(n)
		if err != nil {
			return nil, err
		}
		return [][]byte{v}, nil
	case yaml.SequenceNode:
		values := make([][]byte, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: values must be scalars", c.Line)
			}
			v, err := scalarValue(c)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return values, nil
	default:
		return nil, fmt.Errorf("line %d: expected a value or a list of values", n.Line)
	}
}

func scalarValue(n *yaml.Node) ([]byte, error) {
	if n.Tag == "!!binary" {
		v, err := base64.StdEncoding.DecodeString(n.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
	return []byte(n.Value), nil
}
