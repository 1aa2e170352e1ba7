package crypto

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "12345:TEST-TOKEN"

func TestValidateInitDataRoundTrip(t *testing.T) {
	authDate := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	initData := SignInitData(InitDataUser{ID: 777, Username: "trader", FirstName: "Ada"}, testBotToken, authDate)

	user, err := ValidateInitData(initData, testBotToken, time.Hour, authDate.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(777), user.ID)
	assert.Equal(t, "trader", user.Username)
}

func TestValidateInitDataRejectsTampering(t *testing.T) {
	authDate := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	initData := SignInitData(InitDataUser{ID: 777, Username: "trader"}, testBotToken, authDate)
	tampered := strings.Replace(initData, "777", "778", 1)

	_, err := ValidateInitData(tampered, testBotToken, 0, authDate)
	assert.ErrorIs(t, err, ErrInitDataSignature)
}

func TestValidateInitDataRejectsWrongToken(t *testing.T) {
	authDate := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	initData := SignInitData(InitDataUser{ID: 777}, testBotToken, authDate)

	_, err := ValidateInitData(initData, "12345:OTHER-TOKEN", 0, authDate)
	assert.ErrorIs(t, err, ErrInitDataSignature)
}

func TestValidateInitDataExpiry(t *testing.T) {
	authDate := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	initData := SignInitData(InitDataUser{ID: 777}, testBotToken, authDate)

	_, err := ValidateInitData(initData, testBotToken, time.Hour, authDate.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrInitDataExpired)

	// maxAge zero disables the freshness check.
	_, err = ValidateInitData(initData, testBotToken, 0, authDate.Add(48*time.Hour))
	assert.NoError(t, err)
}

func TestTokenEncryptDecrypt(t *testing.T) {
	blob, err := EncryptToken(testBotToken, "hunter2")
	require.NoError(t, err)

	token, err := DecryptToken(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testBotToken, token)

	_, err = DecryptToken(blob, "wrong")
	assert.ErrorContains(t, err, "decryption failed")
}

func TestEncryptTokenValidation(t *testing.T) {
	_, err := EncryptToken("", "hunter2")
	assert.Error(t, err)

	_, err = EncryptToken(testBotToken, "")
	assert.Error(t, err)
}
