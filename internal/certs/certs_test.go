package certs

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Localhost(t *testing.T) {
	store := NewFileStore(t.TempDir())

	first, err := store.Localhost()
	require.NoError(t, err)
	require.NotEmpty(t, first.Certificate)

	leaf, err := x509.ParseCertificate(first.Certificate[0])
	require.NoError(t, err)
	require.NoError(t, leaf.VerifyHostname("localhost"))
	require.NoError(t, leaf.VerifyHostname("127.0.0.1"))
	assert.WithinDuration(t, time.Now().Add(Validity), leaf.NotAfter, time.Minute)

	info, err := os.Stat(store.keyFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := store.Localhost()
	require.NoError(t, err)
	assert.Equal(t, first.Certificate[0], second.Certificate[0], "stored certificate is reused")
}

func TestFileStore_ReplacesUnusableCertificate(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, s *FileStore)
	}{
		{
			name: "corrupt files",
			setup: func(t *testing.T, s *FileStore) {
				require.NoError(t, os.WriteFile(s.certFile, []byte("not a certificate"), 0600))
				require.NoError(t, os.WriteFile(s.keyFile, []byte("not a key"), 0600))
			},
		},
		{
			name: "expired",
			setup: func(t *testing.T, s *FileStore) {
				_, err := s.generate(time.Now().Add(-2 * Validity))
				require.NoError(t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewFileStore(t.TempDir())
			require.NoError(t, os.MkdirAll(store.dir, 0700))
			tt.setup(t, store)

			cert, err := store.Localhost()
			require.NoError(t, err)
			require.NoError(t, verify(cert, time.Now()))
		})
	}
}

func TestVerify(t *testing.T) {
	store := NewFileStore(t.TempDir())
	cert, err := store.generate(time.Now())
	require.NoError(t, err)

	require.NoError(t, verify(cert, time.Now()))
	require.ErrorContains(t, verify(cert, time.Now().Add(-time.Hour)), "not yet valid")
	require.ErrorContains(t, verify(cert, time.Now().Add(2*Validity)), "expired")
	assert.NoError(t, verify(cert, time.Now().Add(Validity/2)))
	assert.Error(t, verify(tls.Certificate{}, time.Now()))
}
