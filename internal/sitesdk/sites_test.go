package sitesdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSDK(t *testing.T, handler http.Handler) *SiteSDK {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	sdk, err := New(&Config{
		BaseURL:  server.URL,
		APIKey:   "test-key",
		Username: "tester",
		DeviceID: "device-test",
	})
	require.NoError(t, err)
	return sdk
}

func TestStatus(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	sdk := testSDK(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get(HeaderAPIKey))
		assert.Equal(t, v1Status, r.URL.Path)
		json.NewEncoder(w).Encode(&StatusResponse{Username: "tester", ServerTime: now})
	}))

	status, err := sdk.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tester", status.Username)
	assert.Equal(t, now, status.ServerTime)
}

func TestListSites(t *testing.T) {
	sdk := testSDK(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(&ListSitesResponse{Files: []SiteInfo{
			{NodeID: 42, Filename: "intro", Path: "blog/intro", Checksum: "a1b2c3d4e5f60708"},
		}})
	}))

	sites, err := sdk.Sites.List(context.Background())
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, int64(42), sites[0].NodeID)
	assert.Equal(t, "blog/intro", sites[0].Path)
}

func TestUploadSite_NameConflict(t *testing.T) {
	sdk := testSDK(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"msg":"name already taken","details":{"suggestions":["payments-2","my-payments"]}}`))
	}))

	_, err := sdk.Sites.Upload(context.Background(), &UploadSiteParams{Filename: "payments", Content: "<html></html>"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNameTaken())
	assert.Equal(t, []string{"payments-2", "my-payments"}, apiErr.Suggestions)
}

func TestDeleteRenameMove_Verbs(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]any

	sdk := testSDK(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotBody = map[string]any{}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))

	ctx := context.Background()

	require.NoError(t, sdk.Sites.Delete(ctx, 7))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, v1SiteDelete, gotPath)
	assert.EqualValues(t, 7, gotBody["nodeId"])

	require.NoError(t, sdk.Sites.Rename(ctx, 7, "new-name"))
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "new-name", gotBody["newName"])

	require.NoError(t, sdk.Sites.Move(ctx, 7, "blog/archive"))
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "blog/archive", gotBody["targetFolderPath"])
}

func TestDownloadSite_404(t *testing.T) {
	sdk := testSDK(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	}))

	_, err := sdk.Sites.Download(context.Background(), "blog/gone")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestUploadRoundTrip_Base64Content(t *testing.T) {
	payload := []byte{0x00, 0x01, 0xFF, 0x10}
	var stored []byte

	sdk := testSDK(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case v1UploadUpload:
			var params UploadUploadParams
			require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
			stored = params.Content
			w.WriteHeader(http.StatusOK)
		case v1UploadDownload:
			json.NewEncoder(w).Encode(&DownloadUploadResponse{Content: stored, Checksum: "feedfacefeedface"})
		}
	}))

	ctx := context.Background()
	require.NoError(t, sdk.Uploads.Upload(ctx, &UploadUploadParams{Path: "assets/logo.png", Content: payload}))

	resp, err := sdk.Uploads.Download(ctx, "assets/logo.png")
	require.NoError(t, err)
	assert.Equal(t, payload, resp.Content)
}
