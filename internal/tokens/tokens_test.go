package tokens

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-32-bytes-should-be-long-enough"

func TestGenerateAccessToken_ValidAndClaims(t *testing.T) {
	tokenStr, err := GenerateAccessToken(secret, "admin", 2*time.Minute)
	require.NoError(t, err)

	parsed, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	require.Equal(t, "admin", claims["user"])
}

func TestGenerateAccessToken_EmptySecret(t *testing.T) {
	_, err := GenerateAccessToken("", "admin", time.Minute)
	require.Error(t, err)
}

func TestVerifier_RoundTrip(t *testing.T) {
	tokenStr, err := GenerateAccessToken(secret, "admin", time.Minute)
	require.NoError(t, err)

	tok, err := NewVerifier(secret).Verify(context.Background(), tokenStr)
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	require.Equal(t, "admin", claims["user"])
}

func TestVerifier_Expired(t *testing.T) {
	tokenStr, err := GenerateAccessToken(secret, "admin", -time.Minute)
	require.NoError(t, err)
	_, err = NewVerifier(secret).Verify(context.Background(), tokenStr)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerifier_WrongSecretFails(t *testing.T) {
	tokenStr, err := GenerateAccessToken("secret-one-32-bytes-xxxxxxxxxxxxxxxx", "admin", 2*time.Minute)
	require.NoError(t, err)
	_, err = NewVerifier("different-secret-xxxxxxxxxxxxxxxx").Verify(context.Background(), tokenStr)
	require.Error(t, err)
}

func TestVerifier_Malformed(t *testing.T) {
	_, err := NewVerifier(secret).Verify(context.Background(), "not.a.jwt")
	require.Error(t, err)
}

// Rejected when alg=none (unsigned token)
func TestVerifier_AlgNoneRejected(t *testing.T) {
	headerEnc := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	payloadEnc := base64.RawURLEncoding.EncodeToString([]byte(`{"user":"admin","exp":9999999999}`))
	_, err := NewVerifier(secret).Verify(context.Background(), headerEnc+"."+payloadEnc+".")
	require.Error(t, err)
}

// Tampering with payload must fail signature verification
func TestVerifier_TamperedPayload(t *testing.T) {
	tokenStr, err := GenerateAccessToken(secret, "admin", 5*time.Minute)
	require.NoError(t, err)
	parts := strings.Split(tokenStr, ".")
	require.Len(t, parts, 3)
	payloadBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(strings.Replace(string(payloadBytes), "admin", "attacker", 1)))
	_, err = NewVerifier(secret).Verify(context.Background(), strings.Join(parts, "."))
	require.Error(t, err)
}
