package apihttp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const maxBodyBytes = 1 << 20

// flexValue accepts a JSON number or string and keeps its text. Clients send
// storefronts, genres and ids either way.
type flexValue struct {
	text string
	set  bool
}

func (v *flexValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v.text = strings.TrimSpace(s)
		v.set = v.text != ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected number or string, got %s", data)
	}
	v.text = n.String()
	v.set = true
	return nil
}

func (v flexValue) String() string { return v.text }

func (v flexValue) Int() (int64, error) {
	return strconv.ParseInt(v.text, 10, 64)
}

type pageFields struct {
	Limit  *int `json:"limit"`
	Offset *int `json:"offset"`
}

func (p pageFields) resolve(defaultLimit int) (limit, offset int, err error) {
	limit, offset = defaultLimit, 0
	if p.Limit != nil {
		if *p.Limit <= 0 {
			return 0, 0, errors.New("limit must be > 0")
		}
		limit = *p.Limit
	}
	if p.Offset != nil {
		if *p.Offset < 0 {
			return 0, 0, errors.New("offset must be >= 0")
		}
		offset = *p.Offset
	}
	return limit, offset, nil
}

type legacyChartRequest struct {
	pageFields
	Country     flexValue `json:"country"`
	Category    flexValue `json:"category"`
	Genre       flexValue `json:"genre"`
	RankingType flexValue `json:"rankingType"`
	Chart       flexValue `json:"chart"`
}

type chartsV2Request struct {
	pageFields
	ChartType string    `json:"chartType"`
	Genre     flexValue `json:"genre"`
	Country   string    `json:"country"`
	MaxFetch  *int      `json:"maxFetch"`
}

type searchRequest struct {
	pageFields
	SearchTerm string `json:"searchTerm"`
	Country    string `json:"country"`
	Language   string `json:"language"`
}

type appDetailsRequest struct {
	AppID   flexValue `json:"appId"`
	Country string    `json:"country"`
}

type overlayRequest struct {
	AppIDs  json.RawMessage `json:"appIds"`
	Country string          `json:"country"`
}

// ids decodes appIds, which must be a JSON array of positive ids.
func (r overlayRequest) ids() ([]int64, error) {
	raw := bytes.TrimSpace(r.AppIDs)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, errors.New("appIds array is required")
	}
	var values []flexValue
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, errors.New("appIds array is required")
	}
	out := make([]int64, 0, len(values))
	for _, value := range values {
		id, err := value.Int()
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid app id %q", value.text)
		}
		out = append(out, id)
	}
	return out, nil
}

func decodeJSONBody(r *http.Request, dest any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}
