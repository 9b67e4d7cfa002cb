package backend

import (
	"context"
	"net/url"

	"github.com/matheus3301/souk/internal/httpapi"
)

// ApplicationForm is a seller application with its photos.
type ApplicationForm struct {
	ShopName    string
	Description string
	Phone       string
	Photos      []httpapi.File
}

// SellerAPI covers seller onboarding.
type SellerAPI struct {
	c *httpapi.Client
}

// NewSellerAPI creates the seller service.
func NewSellerAPI(c *httpapi.Client) *SellerAPI {
	return &SellerAPI{c: c}
}

func applicationPath(id ID, suffix string) string {
	return "/seller/applications/" + url.PathEscape(string(id)) + "/" + suffix
}

// Apply submits an application as multipart form data.
func (a *SellerAPI) Apply(ctx context.Context, f ApplicationForm) (*SellerApplication, error) {
	form := &httpapi.Form{
		Fields: map[string]string{
			"shop_name":   f.ShopName,
			"description": f.Description,
		},
	}
	if f.Phone != "" {
		form.Fields["phone"] = f.Phone
	}
	for _, p := range f.Photos {
		p.Field = "photos"
		form.Files = append(form.Files, p)
	}
	var out SellerApplication
	if err := a.c.PostForm(ctx, "/seller/applications/", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Mine returns the caller's own application.
func (a *SellerAPI) Mine(ctx context.Context) (*SellerApplication, error) {
	var out SellerApplication
	if err := a.c.Get(ctx, "/seller/applications/me/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns applications for review, optionally filtered by status.
func (a *SellerAPI) List(ctx context.Context, status string) ([]SellerApplication, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	var out Page[SellerApplication]
	if err := a.c.Get(ctx, "/seller/applications/", q, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Approve accepts an application.
func (a *SellerAPI) Approve(ctx context.Context, id ID) (*SellerApplication, error) {
	var out SellerApplication
	if err := a.c.Post(ctx, applicationPath(id, "approve/"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reject declines an application with a reason shown to the applicant.
func (a *SellerAPI) Reject(ctx context.Context, id ID, reason string) (*SellerApplication, error) {
	var out SellerApplication
	if err := a.c.Post(ctx, applicationPath(id, "reject/"), map[string]string{"reason": reason}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
