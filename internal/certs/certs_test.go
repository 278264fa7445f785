package certs

import (
	"crypto/x509"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrGenerate(t *testing.T) {
	dir := t.TempDir()

	cert, err := LoadOrGenerate(dir)
	require.NoError(t, err)
	require.NotEmpty(t, cert.Certificate)

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)

	assert.Equal(t, "League Deceiver CA", leaf.Subject.CommonName)
	assert.True(t, leaf.IsCA)
	assert.Contains(t, leaf.DNSNames, "localhost")
	require.Len(t, leaf.IPAddresses, 1)
	assert.True(t, leaf.IPAddresses[0].Equal(net.ParseIP("127.0.0.1")))
	assert.NotZero(t, leaf.KeyUsage&x509.KeyUsageDigitalSignature)
	assert.NotZero(t, leaf.KeyUsage&x509.KeyUsageKeyEncipherment)
	assert.NotZero(t, leaf.KeyUsage&x509.KeyUsageCertSign)

	// Roughly ten years of validity.
	assert.WithinDuration(t, time.Now().Add(validity), leaf.NotAfter, time.Hour)
}

func TestLoadOrGenerateIsStable(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrGenerate(dir)
	require.NoError(t, err)
	second, err := LoadOrGenerate(dir)
	require.NoError(t, err)

	assert.Equal(t, first.Certificate[0], second.Certificate[0],
		"the persisted pair must be reused across runs")
}

func TestLoadOrGenerateRecoversFromGarbage(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadOrGenerate(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, certFileName), []byte("garbage"), 0o644))
	cert, err := LoadOrGenerate(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, cert.Certificate)
}
