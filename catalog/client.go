package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/nci/gbathy/utils"
)

// APIClient queries a remote catalog API.
type APIClient struct {
	Address string
	Client  *http.Client
}

func NewAPIClient(address string) *APIClient {
	return &APIClient{Address: address, Client: &http.Client{Timeout: 5 * time.Minute}}
}

func (c *APIClient) queryURL(q SceneQuery) string {
	params := url.Values{}
	if len(q.Generation) > 0 {
		params.Set("generation", q.Generation)
	}
	if !q.Start.IsZero() {
		params.Set("time", q.Start.UTC().Format(utils.ISOFormat))
	}
	if !q.End.IsZero() {
		params.Set("until", q.End.UTC().Format(utils.ISOFormat))
	}
	if len(q.BBox) == 4 {
		params.Set("wkt", BBox2WKT(q.BBox))
	}
	return fmt.Sprintf("http://%s/intersects?%s", c.Address, params.Encode())
}

func (c *APIClient) Query(ctx context.Context, q SceneQuery) ([]*SceneRecord, error) {
	u := c.queryURL(q)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET request to %s failed. Error: %v", u, err)
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("Error parsing response body from %s. Error: %v", u, err)
	}

	var sr SceneResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("Problem parsing JSON response from %s. Error: %v", u, err)
	}
	if resp.StatusCode != http.StatusOK || len(sr.Error) > 0 {
		return nil, fmt.Errorf("catalog API %s: status %d: %s", c.Address, resp.StatusCode, sr.Error)
	}
	return sr.Scenes, nil
}
