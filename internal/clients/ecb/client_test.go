package ecb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/folio/internal/clients/upstream"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dailyXML = `<?xml version="1.0" encoding="UTF-8"?>
<gesmes:Envelope xmlns:gesmes="http://www.gesmes.org/xml/2002-08-01" xmlns="http://www.ecb.int/vocabulary/2002-08-01/eurofxref">
	<gesmes:subject>Reference rates</gesmes:subject>
	<gesmes:Sender>
		<gesmes:name>European Central Bank</gesmes:name>
	</gesmes:Sender>
	<Cube>
		<Cube time="2024-03-01">
			<Cube currency="USD" rate="1.0822"/>
			<Cube currency="JPY" rate="162.39"/>
			<Cube currency="GBP" rate="0.85513"/>
			<Cube currency="XXX" rate="n/a"/>
		</Cube>
	</Cube>
</gesmes:Envelope>`

func newTestClient(url string) *Client {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	up := upstream.New(upstream.Config{Name: "ecb", MaxAttempts: 1, RPS: 100}, nil, log)
	return NewClient(url, up, log)
}

func TestFetchRates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(dailyXML))
	}))
	defer server.Close()

	rates, err := newTestClient(server.URL).FetchRates(context.Background())
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), rates.Date)
	assert.Equal(t, 1.0, rates.Rates["EUR"])
	assert.Equal(t, 1.0822, rates.Rates["USD"])
	assert.Equal(t, 0.85513, rates.Rates["GBP"])
	assert.NotContains(t, rates.Rates, "XXX")
	assert.Len(t, rates.Rates, 4)
}

func TestFetchRates_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError},
		{name: "malformed xml", status: http.StatusOK, body: "<Cube><Cube"},
		{name: "no rates", status: http.StatusOK, body: "<Envelope><Cube></Cube></Envelope>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).FetchRates(context.Background())
			assert.Error(t, err)
		})
	}
}
