package client

import (
	"context"
	"fmt"
	"net/url"
)

// HouseHuntClient speaks the public JSON API. It returns raw responses so
// callers can assert on status codes as well as payloads.
type HouseHuntClient struct {
	httpClient *HttpClient
}

func NewHouseHuntClient(baseURL string) *HouseHuntClient {
	return &HouseHuntClient{
		httpClient: NewHttpClient(baseURL),
	}
}

func (c *HouseHuntClient) HTTP() *HttpClient {
	return c.httpClient
}

func (c *HouseHuntClient) Register(ctx context.Context, body any) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/users/register", body)
}

func (c *HouseHuntClient) Login(ctx context.Context, email, password string) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/users/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (c *HouseHuntClient) GetUser(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/users/"+url.PathEscape(id))
}

func (c *HouseHuntClient) AddProperty(ctx context.Context, body any) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/properties/add", body)
}

func (c *HouseHuntClient) ListProperties(ctx context.Context, limit int, offset int64) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/properties"+pageQuery(limit, offset))
}

func (c *HouseHuntClient) GetProperty(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/properties/"+url.PathEscape(id))
}

func (c *HouseHuntClient) RequestBooking(ctx context.Context, body any) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/bookings/request", body)
}

func (c *HouseHuntClient) RequestBookingIdempotent(ctx context.Context, body any, key string) (*Response, error) {
	return c.httpClient.POSTWithHeaders(ctx, "/api/bookings/request", body, map[string]string{
		"Idempotency-Key": key,
	})
}

func (c *HouseHuntClient) ListBookings(ctx context.Context, limit int, offset int64) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/bookings"+pageQuery(limit, offset))
}

func (c *HouseHuntClient) GetBooking(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/bookings/"+url.PathEscape(id))
}

func (c *HouseHuntClient) UpdateBookingStatus(ctx context.Context, id, status string) (*Response, error) {
	path := "/api/bookings/" + url.PathEscape(id) + "/status"
	return c.httpClient.PATCH(ctx, path, map[string]string{"status": status})
}

func pageQuery(limit int, offset int64) string {
	if limit <= 0 && offset <= 0 {
		return ""
	}
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if offset > 0 {
		q.Set("offset", fmt.Sprintf("%d", offset))
	}
	return "?" + q.Encode()
}
