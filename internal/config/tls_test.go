package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemporalTLS_Plaintext(t *testing.T) {
	cfg := &Config{}

	tlsConfig, err := cfg.TemporalTLS()
	require.NoError(t, err)
	assert.Nil(t, tlsConfig)
}

func TestTemporalTLS_MissingKeyPair(t *testing.T) {
	cfg := &Config{
		TemporalTLSCert: "/nonexistent/client.crt",
		TemporalTLSKey:  "/nonexistent/client.key",
	}

	_, err := cfg.TemporalTLS()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load temporal client cert")
}
