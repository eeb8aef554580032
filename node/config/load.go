package config

import (
	"bytes"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"golang.org/x/xerrors"
)

// FromFile loads config from a specified file overriding defaults.
// A missing file yields the defaults.
func FromFile(path string) (*Mesh, error) {
	file, err := os.Open(path)
	switch {
	case os.IsNotExist(err):
		return DefaultMesh(), nil
	case err != nil:
		return nil, err
	}

	defer file.Close() //nolint:errcheck // The file is RO
	return FromReader(file, DefaultMesh())
}

// FromReader loads config from a reader instance.
func FromReader(reader io.Reader, def *Mesh) (*Mesh, error) {
	cfg := *def
	if _, err := toml.NewDecoder(reader).Decode(&cfg); err != nil {
		return nil, xerrors.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (m *Mesh) Validate() error {
	if m.Pubsub.Topic == "" {
		return xerrors.New("Pubsub.Topic must not be empty")
	}
	if len(m.Libp2p.ListenAddresses) == 0 {
		return xerrors.New("Libp2p.ListenAddresses must not be empty")
	}
	if m.Libp2p.ConnMgrHigh < m.Libp2p.ConnMgrLow {
		return xerrors.Errorf("Libp2p.ConnMgrHigh (%d) below ConnMgrLow (%d)", m.Libp2p.ConnMgrHigh, m.Libp2p.ConnMgrLow)
	}
	switch m.Discovery.Backend {
	case DiscoveryZeroconf, DiscoveryMdns, DiscoveryStatic, DiscoveryNone:
	default:
		return xerrors.Errorf("unknown discovery backend %q", m.Discovery.Backend)
	}
	return nil
}

// ConfigComment renders t as TOML with every value commented out.
func ConfigComment(t interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	_, _ = buf.WriteString("# Default config:\n")
	e := toml.NewEncoder(buf)
	if err := e.Encode(t); err != nil {
		return nil, xerrors.Errorf("encoding config: %w", err)
	}
	b := buf.Bytes()
	b = bytes.ReplaceAll(b, []byte("\n"), []byte("\n#"))
	b = bytes.ReplaceAll(b, []byte("#["), []byte("["))
	return b, nil
}
