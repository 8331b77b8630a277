package mailchimp_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"ms-cursos/internal/mailchimp"
)

func TestSubscribeSuccessOnFirstTry(t *testing.T) {
	var payloads []map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]interface{}
		_ = json.Unmarshal(body, &payload)
		payloads = append(payloads, payload)
		_, _ = w.Write([]byte("true"))
	}))
	defer server.Close()

	client := mailchimp.NewClient(server.URL, "key", "list1")
	err := client.Subscribe(context.Background(), mailchimp.Subscriber{
		Email:     "alumno@example.com",
		FirstName: "Carlos",
		IP:        "1.2.3.4",
		Country:   "MX",
		Segment:   "Curso Go",
	})
	assert.NoError(t, err)
	assert.Len(t, payloads, 1)

	assert.Equal(t, "alumno@example.com", payloads[0]["email_address"])
	mergeVars := payloads[0]["merge_vars"].(map[string]interface{})
	assert.Equal(t, "1.2.3.4", mergeVars["OPTINIP"])
	assert.Equal(t, "MX", mergeVars["PAIS"])

	// FNAME only appears on the retry path.
	_, hasName := mergeVars["FNAME"]
	assert.False(t, hasName)
}

func TestSubscribeRetriesWithFirstName(t *testing.T) {
	var payloads []map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]interface{}
		_ = json.Unmarshal(body, &payload)
		payloads = append(payloads, payload)

		if len(payloads) == 1 {
			_, _ = w.Write([]byte(`{"error":"merge field required"}`))
			return
		}
		_, _ = w.Write([]byte("true"))
	}))
	defer server.Close()

	client := mailchimp.NewClient(server.URL, "key", "list1")
	err := client.Subscribe(context.Background(), mailchimp.Subscriber{
		Email:     "alumno@example.com",
		FirstName: "Carlos",
		Segment:   "Curso Go",
	})
	assert.NoError(t, err)
	assert.Len(t, payloads, 2)

	first := payloads[0]["merge_vars"].(map[string]interface{})
	_, hasName := first["FNAME"]
	assert.False(t, hasName)

	second := payloads[1]["merge_vars"].(map[string]interface{})
	assert.Equal(t, "Carlos", second["FNAME"])
}
