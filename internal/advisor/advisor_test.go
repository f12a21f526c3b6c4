package advisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"apiconform/internal/config"
	"apiconform/internal/model"
)

func TestNew_RequiresEnabledAndKey(t *testing.T) {
	_, err := New(config.AdvisorConfig{})
	require.Error(t, err)

	_, err = New(config.AdvisorConfig{Enabled: true})
	require.Error(t, err)

	_, err = New(config.AdvisorConfig{Enabled: true, APIKey: "sk-test"})
	require.NoError(t, err)
}

func TestSuggest_ParsesModelResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Content: `[{"name":"created-at-present","reason":"every POST response includes createdAt","assertionSketch":"resp.body.createdAt != nil"}]`,
				},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	a, err := New(config.AdvisorConfig{Enabled: true, APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	reports := []model.RequestReport{{
		RequestMethod:      "POST",
		RequestPath:        "/api/users",
		ResponseStatusCode: 201,
		ExecutionTime:      10 * time.Millisecond,
	}}

	suggestions, err := a.Suggest(context.Background(), reports)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	require.Equal(t, "created-at-present", suggestions[0].Name)
}

func TestSuggest_EmptyReportsIsNoop(t *testing.T) {
	a, err := New(config.AdvisorConfig{Enabled: true, APIKey: "sk-test"})
	require.NoError(t, err)

	suggestions, err := a.Suggest(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, suggestions)
}
