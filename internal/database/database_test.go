package database

import (
	"crypto/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	tempDir := t.TempDir()

	encryptionKey := make([]byte, 32)
	_, err := rand.Read(encryptionKey)
	require.NoError(t, err)

	config := Config{
		DatabasePath:  filepath.Join(tempDir, "test.db"),
		EncryptionKey: encryptionKey,
	}

	db, err := NewDB(config)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	return db
}

func TestNewDB(t *testing.T) {
	db := setupTestDB(t)
	require.NotNil(t, db)
}

func TestEncryptDecrypt(t *testing.T) {
	db := setupTestDB(t)

	testData := []byte("sensitive transaction payload")

	encrypted, err := db.Encrypt(testData)
	require.NoError(t, err)
	require.NotEqual(t, string(testData), encrypted)

	decrypted, err := db.Decrypt(encrypted)
	require.NoError(t, err)
	require.Equal(t, testData, decrypted)
}

func TestEncryptDecryptEmptyData(t *testing.T) {
	db := setupTestDB(t)

	encrypted, err := db.Encrypt([]byte(""))
	require.NoError(t, err)

	decrypted, err := db.Decrypt(encrypted)
	require.NoError(t, err)
	require.Equal(t, "", string(decrypted))
}
