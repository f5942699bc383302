package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

var compressionCodecs = map[string]kafkago.Compression{
	"none":   0,
	"gzip":   kafkago.Gzip,
	"snappy": kafkago.Snappy,
	"lz4":    kafkago.Lz4,
	"zstd":   kafkago.Zstd,
}

// ResolveCompression maps a codec name to kafka-go's compression. Unknown
// names fall back to snappy.
func ResolveCompression(name string) kafkago.Compression {
	if c, ok := compressionCodecs[strings.ToLower(name)]; ok {
		return c
	}
	return kafkago.Snappy
}

// CreateTransport builds the producer transport, adding TLS and SASL when
// the config enables them.
func CreateTransport(cfg *Config) (*kafkago.Transport, error) {
	t := &kafkago.Transport{
		IdleTimeout: ParseDuration(cfg.IdleTimeout),
		MetadataTTL: ParseDuration(cfg.MetadataTTL),
		ClientID:    "fintan",
	}
	var err error
	if cfg.EnableTLS {
		if t.TLS, err = tlsConfig(cfg); err != nil {
			return nil, fmt.Errorf("kafka tls: %w", err)
		}
	}
	if cfg.EnableSASL {
		if t.SASL, err = saslMechanism(cfg); err != nil {
			return nil, fmt.Errorf("kafka sasl: %w", err)
		}
	}
	return t, nil
}

func tlsConfig(cfg *Config) (*tls.Config, error) {
	tc := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: cfg.TLSSkipVerify}
	if cfg.TLSCAFile != "" {
		pem, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, err
		}
		tc.RootCAs = x509.NewCertPool()
		if !tc.RootCAs.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in %s", cfg.TLSCAFile)
		}
	}
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		pair, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, err
		}
		tc.Certificates = []tls.Certificate{pair}
	}
	return tc, nil
}

func saslMechanism(cfg *Config) (sasl.Mechanism, error) {
	switch strings.ToUpper(cfg.SASLMechanism) {
	case "PLAIN":
		return plain.Mechanism{Username: cfg.Username, Password: cfg.Password}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	}
	return nil, fmt.Errorf("unsupported mechanism %q", cfg.SASLMechanism)
}
