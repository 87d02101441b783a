package credentials

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagehq/provisiond/pkg/errs"
)

func TestParse_Valid(t *testing.T) {
	c, err := Parse([]byte(`{"ssid":"HomeNet","password":"hunter2x8"}`))
	require.NoError(t, err)
	assert.Equal(t, "HomeNet", c.SSID)
	assert.Equal(t, Password("hunter2x8"), c.Password)
	assert.False(t, c.Open())
}

func TestParse_OpenNetwork(t *testing.T) {
	c, err := Parse([]byte(`{"ssid":"FreeWifi","password":""}`))
	require.NoError(t, err)
	assert.True(t, c.Open())
}

func TestParse_MalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`not json`))
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.InvalidCredentials, kind)
}

func TestParse_MissingSSID(t *testing.T) {
	_, err := Parse([]byte(`{"password":"x"}`))
	require.Error(t, err)
	kind, _ := errs.KindOf(err)
	assert.Equal(t, errs.InvalidCredentials, kind)
}

func TestParse_SSIDTooLong(t *testing.T) {
	ssid := strings.Repeat("a", MaxSSIDBytes+1)
	_, err := Parse([]byte(fmt.Sprintf(`{"ssid":%q,"password":"x"}`, ssid)))
	require.Error(t, err)
}

func TestParse_PasswordTooLong(t *testing.T) {
	password := strings.Repeat("a", MaxPasswordBytes+1)
	_, err := Parse([]byte(fmt.Sprintf(`{"ssid":"HomeNet","password":%q}`, password)))
	require.Error(t, err)
}

func TestParse_PayloadTooLarge(t *testing.T) {
	huge := strings.Repeat("a", MaxPayloadBytes+1)
	_, err := Parse([]byte(huge))
	require.Error(t, err)
}

func TestPassword_NeverDiscloses(t *testing.T) {
	p := Password("hunter2x8")
	assert.Equal(t, "[redacted]", p.String())
	assert.NotContains(t, fmt.Sprintf("%v", p), "hunter2x8")
	assert.NotContains(t, fmt.Sprintf("%#v", p), "hunter2x8")
	assert.NotContains(t, fmt.Sprintf("%s", p), "hunter2x8")
}
