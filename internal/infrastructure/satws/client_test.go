package satws

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mxsuite/backend/internal/domain/sat"
)

type staticCredentials struct{}

func (staticCredentials) Credentials(context.Context) (*sat.Credentials, error) {
	return &sat.Credentials{RFC: "XAXX010101000"}, nil
}

const sampleCFDI = `<?xml version="1.0" encoding="UTF-8"?>
<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/4" Fecha="2025-01-15T10:30:00" Total="1160.00">
  <cfdi:Emisor Rfc="AAA010101AAA" Nombre="Proveedora del Norte"/>
  <cfdi:Receptor Rfc="XAXX010101000"/>
  <cfdi:Complemento>
    <tfd:TimbreFiscalDigital xmlns:tfd="http://www.sat.gob.mx/TimbreFiscalDigital" UUID="AD662D33-6934-459C-A128-BDF0393E0F44"/>
  </cfdi:Complemento>
</cfdi:Comprobante>`

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&Config{BaseURL: server.URL, RFC: "XAXX010101000"}, staticCredentials{}, nil)
	require.NoError(t, err)
	return client, server
}

func respond(t *testing.T, w http.ResponseWriter, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestClientRequestPackage(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted request returns the handle", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, pathRequest, r.URL.Path)

			var envelope requestEnvelope
			require.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))
			assert.Equal(t, "XAXX010101000", envelope.ReceiverRFC)
			assert.Empty(t, envelope.IssuerRFC)
			assert.Equal(t, "2025-01-01T00:00:00", envelope.DateFrom)
			assert.Equal(t, "2025-01-31T23:59:59", envelope.DateTo)

			respond(t, w, requestResponse{Code: "5000", RequestID: "REQ-ABC"})
		}))

		requestID, err := client.RequestPackage(ctx, criteria(sat.DirectionReceived))
		require.NoError(t, err)
		assert.Equal(t, "REQ-ABC", requestID)
	})

	t.Run("issued direction puts the rfc on the issuer side", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var envelope requestEnvelope
			require.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))
			assert.Equal(t, "XAXX010101000", envelope.IssuerRFC)
			assert.Empty(t, envelope.ReceiverRFC)
			respond(t, w, requestResponse{Code: "5000", RequestID: "REQ-1"})
		}))

		_, err := client.RequestPackage(ctx, criteria(sat.DirectionIssued))
		require.NoError(t, err)
	})

	t.Run("status codes map to domain errors", func(t *testing.T) {
		tests := []struct {
			code  string
			check func(t *testing.T, err error)
		}{
			{"5004", func(t *testing.T, err error) { assert.ErrorIs(t, err, sat.ErrNoDocuments) }},
			{"5011", func(t *testing.T, err error) {
				var throttle *sat.ThrottleError
				require.ErrorAs(t, err, &throttle)
				assert.Equal(t, sat.ThrottleDailyQuota, throttle.Kind)
			}},
			{"5012", func(t *testing.T, err error) {
				var throttle *sat.ThrottleError
				require.ErrorAs(t, err, &throttle)
				assert.Equal(t, sat.ThrottleMinuteQuota, throttle.Kind)
			}},
			{"305", func(t *testing.T, err error) { assert.ErrorIs(t, err, sat.ErrInvalidCredentials) }},
			{"5002", func(t *testing.T, err error) { assert.ErrorIs(t, err, sat.ErrRequestRejected) }},
		}

		for _, tt := range tests {
			t.Run("code "+tt.code, func(t *testing.T) {
				client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					respond(t, w, requestResponse{Code: tt.code, Message: "rechazada"})
				}))
				_, err := client.RequestPackage(ctx, criteria(sat.DirectionReceived))
				require.Error(t, err)
				tt.check(t, err)
			})
		}
	})

	t.Run("http 429 is a minute-quota throttle", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))

		_, err := client.RequestPackage(ctx, criteria(sat.DirectionReceived))
		var throttle *sat.ThrottleError
		require.ErrorAs(t, err, &throttle)
		assert.Equal(t, sat.ThrottleMinuteQuota, throttle.Kind)
	})
}

func TestClientPollPackage(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		state int
		want  sat.PackageState
	}{
		{"accepted is pending", stateAccepted, sat.PackagePending},
		{"in progress is pending", stateInProgress, sat.PackagePending},
		{"finished is ready", stateFinished, sat.PackageReady},
		{"expired maps through", stateExpired, sat.PackageExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				respond(t, w, verifyResponse{Code: "5000", State: tt.state, PackageIDs: []string{"PKG-1"}})
			}))

			state, err := client.PollPackage(ctx, "REQ-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, state)
		})
	}

	t.Run("rejected state is a permanent error", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			respond(t, w, verifyResponse{Code: "5000", State: stateRejected, Message: "solicitud rechazada"})
		}))

		_, err := client.PollPackage(ctx, "REQ-1")
		assert.ErrorIs(t, err, sat.ErrRequestRejected)
	})
}

func TestClientFetchPackage(t *testing.T) {
	ctx := context.Background()

	buildArchive := func(t *testing.T, entries map[string]string) string {
		t.Helper()
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		for name, content := range entries {
			f, err := zw.Create(name)
			require.NoError(t, err)
			_, err = f.Write([]byte(content))
			require.NoError(t, err)
		}
		require.NoError(t, zw.Close())
		return base64.StdEncoding.EncodeToString(buf.Bytes())
	}

	t.Run("extracts documents and counts unreadable entries", func(t *testing.T) {
		archive := buildArchive(t, map[string]string{
			"ad662d33.xml": sampleCFDI,
			"broken.xml":   "<not-a-document>",
			"notes.txt":    "ignored",
		})

		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case pathVerify:
				respond(t, w, verifyResponse{Code: "5000", State: stateFinished, PackageIDs: []string{"PKG-1"}, Documents: 2})
			case pathDownload:
				respond(t, w, downloadResponse{Code: "5000", Package: archive})
			default:
				t.Fatalf("unexpected path %s", r.URL.Path)
			}
		}))

		result, err := client.FetchPackage(ctx, "REQ-1")
		require.NoError(t, err)

		assert.Equal(t, 2, result.TotalDocuments)
		assert.Equal(t, 1, result.Unreadable)
		require.Len(t, result.Documents, 1)
		doc := result.Documents[0]
		assert.Equal(t, "AD662D33-6934-459C-A128-BDF0393E0F44", doc.FiscalUUID)
		assert.Equal(t, "AAA010101AAA", doc.IssuerRFC)
		assert.Equal(t, "Proveedora del Norte", doc.IssuerName)
		assert.Equal(t, "XAXX010101000", doc.ReceiverRFC)
		assert.Equal(t, "1160", doc.Total.String())
		assert.Equal(t, sampleCFDI, doc.XML)
	})

	t.Run("fetch of an unfinished request fails", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			respond(t, w, verifyResponse{Code: "5000", State: stateInProgress})
		}))

		_, err := client.FetchPackage(ctx, "REQ-1")
		assert.Error(t, err)
	})
}

func TestParseDocument(t *testing.T) {
	t.Run("parses a stamped document", func(t *testing.T) {
		doc, err := parseDocument([]byte(sampleCFDI))
		require.NoError(t, err)
		assert.Equal(t, "AD662D33-6934-459C-A128-BDF0393E0F44", doc.FiscalUUID)
		assert.Equal(t, 2025, doc.IssuedAt.Year())
	})

	t.Run("rejects document without stamp", func(t *testing.T) {
		_, err := parseDocument([]byte(`<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/4" Fecha="2025-01-15T10:30:00" Total="1.00"/>`))
		assert.Error(t, err)
	})
}

func criteria(direction sat.Direction) sat.DownloadCriteria {
	return sat.DownloadCriteria{
		Direction:   direction,
		PeriodStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}
