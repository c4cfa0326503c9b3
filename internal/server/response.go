package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cespare/xxhash/v2"
	"github.com/labstack/echo/v4"

	"cardtrack/internal/core"
	"cardtrack/internal/loader"
)

// setsResponse is the wire form of a loader state. loading_more and
// has_more are only present for paginated games.
type setsResponse struct {
	Game         core.Game        `json:"game"`
	Items        []core.SetRecord `json:"items"`
	Total        int              `json:"total"`
	Loading      bool             `json:"loading"`
	LoadingMore  *bool            `json:"loading_more,omitempty"`
	HasMore      *bool            `json:"has_more,omitempty"`
	Error        *string          `json:"error"`
	Source       loader.Tier      `json:"source,omitempty"`
	ContentReady bool             `json:"content_ready"`
}

func newSetsResponse(st loader.State) setsResponse {
	resp := setsResponse{
		Game:         st.Game,
		Items:        st.Items,
		Total:        st.Total,
		Loading:      st.Loading,
		Source:       st.Source,
		ContentReady: st.ContentReady,
	}
	if resp.Items == nil {
		resp.Items = []core.SetRecord{}
	}
	if st.Paginated {
		resp.LoadingMore = &st.LoadingMore
		resp.HasMore = &st.HasMore
	}
	if st.Error != nil {
		msg := st.Error.Error()
		resp.Error = &msg
	}
	return resp
}

// writeWithETag writes v as JSON with a content hash ETag and answers
// 304 when the client already holds that version.
func writeWithETag(c echo.Context, status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
	c.Response().Header().Set("ETag", etag)
	c.Response().Header().Set("Cache-Control", "no-cache")
	if match := c.Request().Header.Get("If-None-Match"); match == etag {
		return c.NoContent(http.StatusNotModified)
	}
	return c.JSONBlob(status, body)
}
