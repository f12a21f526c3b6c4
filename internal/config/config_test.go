package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromYAML_AppliesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
service:
  base_url: http://localhost:8080
`))
	require.NoError(t, err)
	require.Equal(t, "/swagger/v1/swagger.json", cfg.Service.SwaggerPath)
	require.Equal(t, 30, cfg.Service.TimeoutSecs)
	require.Equal(t, "none", cfg.Service.Auth.Type)
	require.True(t, cfg.State.TrackEntityCounts)
	require.Equal(t, 3, cfg.Run.MaxPerEndpoint)
	require.Equal(t, "apiconform-report.json", cfg.Reporting.OutputPath)
}

func TestFromYAML_MissingBaseURLFails(t *testing.T) {
	_, err := FromYAML([]byte(`service: {}`))
	require.Error(t, err)
}

func TestFromYAML_JWTAuthRequiresSecret(t *testing.T) {
	_, err := FromYAML([]byte(`
service:
  base_url: http://localhost:8080
  auth:
    type: jwt
`))
	require.Error(t, err)
}

func TestFromYAML_AdvisorEnabledRequiresKey(t *testing.T) {
	_, err := FromYAML([]byte(`
service:
  base_url: http://localhost:8080
advisor:
  enabled: true
`))
	require.Error(t, err)
}
