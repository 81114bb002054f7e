package reconcile

import (
	"errors"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// mappingFile is the YAML form of a mapping:
//
//	key: Cédula
//	columns:
//	  - reference: Cédula
//	    incoming: Número de Documento
//	  - reference: Nombre
//	    incoming: Nombre Completo
type mappingFile struct {
	Key     string `yaml:"key,omitempty"`
	Columns []Pair `yaml:"columns"`
}

// ReadMappingYAML decodes a mapping file. When key is set, that pair is moved
// to the front.
func ReadMappingYAML(r io.Reader) (Mapping, error) {
	var f mappingFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return Mapping{}, nil
		}
		return Mapping{}, eris.Wrap(err, "reconcile: decode mapping yaml")
	}

	var m Mapping
	for _, p := range f.Columns {
		if p.Reference == "" || p.Incoming == "" {
			return Mapping{}, eris.Errorf("reconcile: mapping yaml: incomplete pair %+v", p)
		}
		m = m.With(p.Reference, p.Incoming)
	}
	if f.Key != "" {
		return m.WithKey(f.Key)
	}
	return m, nil
}

// WriteMappingYAML encodes m in the form read by ReadMappingYAML.
func WriteMappingYAML(w io.Writer, m Mapping) error {
	f := mappingFile{Columns: m.Pairs()}
	if key, err := m.KeyPair(); err == nil {
		f.Key = key.Reference
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return eris.Wrap(err, "reconcile: encode mapping yaml")
	}
	return eris.Wrap(enc.Close(), "reconcile: close mapping yaml")
}
