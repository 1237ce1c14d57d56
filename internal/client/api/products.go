package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/atinyakov/InventarisHub/internal/models"
)

// productPayload is the writable subset of a product. Amounts go out as JSON
// numbers.
type productPayload struct {
	Name       string      `json:"productName"`
	Category   string      `json:"category"`
	Quantity   int64       `json:"quantity"`
	Price      json.Number `json:"price"`
	TotalPrice json.Number `json:"totalPrice"`
}

func newProductPayload(p models.Product) productPayload {
	return productPayload{
		Name:       p.Name,
		Category:   p.Category,
		Quantity:   p.Quantity,
		Price:      json.Number(p.Price.String()),
		TotalPrice: json.Number(p.TotalPrice.String()),
	}
}

// ListProducts fetches every product. The response must be an object with a
// "products" array; anything else is ErrMalformedResponse.
func (c *Client) ListProducts(ctx context.Context) ([]models.Product, error) {
	body, err := c.call(ctx, request{method: http.MethodGet, path: pathProducts})
	if err != nil {
		return nil, err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.log.Warn("products response is not an object", zap.Error(err))
		return nil, fmt.Errorf("list products: %w", ErrMalformedResponse)
	}
	raw, ok := envelope["products"]
	if !ok {
		c.log.Warn("products response lacks products field")
		return nil, fmt.Errorf("list products: missing products field: %w", ErrMalformedResponse)
	}
	var products []models.Product
	if err := json.Unmarshal(raw, &products); err != nil || products == nil {
		c.log.Warn("products field is not an array", zap.Error(err))
		return nil, fmt.Errorf("list products: products is not an array: %w", ErrMalformedResponse)
	}
	return products, nil
}

// UpdateProduct writes fields to product id. With a non-nil image the body
// is multipart/form-data, otherwise JSON. The server's echoed record is
// returned; an echo that cannot be read yields ErrMalformedResponse even
// though the write itself succeeded.
func (c *Client) UpdateProduct(ctx context.Context, id string, fields models.Product, image *models.ImageUpload) (models.Product, error) {
	req := request{method: http.MethodPut, path: escaped(pathProducts, id)}
	payload := newProductPayload(fields)

	if image == nil {
		body, err := jsonBody(payload)
		if err != nil {
			return models.Product{}, err
		}
		req.body = body
		req.contentType = "application/json"
	} else {
		body, contentType, err := multipartBody(payload, image)
		if err != nil {
			return models.Product{}, err
		}
		req.body = body
		req.contentType = contentType
	}

	body, err := c.call(ctx, req)
	if err != nil {
		return models.Product{}, err
	}
	return decodeProductEcho(body)
}

// DeleteProduct removes product id.
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	_, err := c.call(ctx, request{method: http.MethodDelete, path: escaped(pathProducts, id)})
	return err
}

func multipartBody(p productPayload, image *models.ImageUpload) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	fields := [][2]string{
		{"productName", p.Name},
		{"category", p.Category},
		{"quantity", strconv.FormatInt(p.Quantity, 10)},
		{"price", p.Price.String()},
		{"totalPrice", p.TotalPrice.String()},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}
	filename := image.Filename
	if filename == "" {
		filename = "image"
	}
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		return nil, "", fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(image.Data); err != nil {
		return nil, "", fmt.Errorf("write image part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

// decodeProductEcho accepts a bare product or one wrapped in "product" or
// "data".
func decodeProductEcho(body []byte) (models.Product, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return models.Product{}, fmt.Errorf("update product: %w", ErrMalformedResponse)
	}
	candidates := []json.RawMessage{body}
	for _, key := range []string{"product", "data"} {
		if raw, ok := envelope[key]; ok {
			candidates = append([]json.RawMessage{raw}, candidates...)
		}
	}
	for _, raw := range candidates {
		var p models.Product
		if err := json.Unmarshal(raw, &p); err == nil && p.ID != "" {
			return p, nil
		}
	}
	return models.Product{}, fmt.Errorf("update product: echoed record has no id: %w", ErrMalformedResponse)
}
