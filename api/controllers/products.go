package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/productdesk/api/middleware"
	"github.com/angelmondragon/productdesk/api/responses"
	"github.com/angelmondragon/productdesk/api/validators"
	"github.com/angelmondragon/productdesk/api/views"
	product "github.com/angelmondragon/productdesk/internal/products"
	"github.com/angelmondragon/productdesk/pkg/config"
	pkgerrors "github.com/angelmondragon/productdesk/pkg/errors"
)

const productsPath = "/products"

type productSubmitter interface {
	Submit(ctx context.Context, sub product.Submission) (*product.Outcome, error)
}

func AddProductPage(pages *Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pages.render(w, r, http.StatusOK, views.PageAddProduct, views.Page{Title: "Yeni Ürün"})
	}
}

// AddProduct runs a product submission for the signed-in browser. Field problems re-render
// the form; backend failures keep the form filled and show a toast.
func AddProduct(pages *Pages, svc productSubmitter, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tab := middleware.TabFromContext(r.Context())
		if tab == nil || tab.Client == nil {
			responses.WritePlainError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeInternal, "browser session missing"))
			return
		}

		form, image, err := validators.ParseProductForm(r, cfg.Submission.MaxUploadBytes())
		if err != nil {
			renderProductForm(w, r, pages, http.StatusUnprocessableEntity, form, err)
			return
		}

		userID, _ := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		_, err = svc.Submit(r.Context(), product.Submission{
			BrowserID: tab.BrowserID,
			UserID:    userID,
			Form:      form,
			Image:     image,
			Storage:   tab.Client.Storage(),
			Table:     tab.Client.Table(cfg.Table.Products),
		})
		switch {
		case err == nil:
			pages.success(r, product.MsgCreated)
			middleware.Redirect(w, r, productsPath)
		case pkgerrors.IsCode(err, pkgerrors.CodeValidation):
			renderProductForm(w, r, pages, http.StatusUnprocessableEntity, form, err)
		default:
			pages.failure(r, toastMessage(err))
			_, status, _ := responses.PublicError(err)
			renderProductForm(w, r, pages, status, form, nil)
		}
	}
}

func renderProductForm(w http.ResponseWriter, r *http.Request, pages *Pages, status int, form product.Form, err error) {
	pages.render(w, r, status, views.PageAddProduct, views.Page{
		Title: "Yeni Ürün",
		Form: map[string]string{
			"name":        form.Name,
			"description": form.Description,
			"price":       form.Price,
		},
		Errors: validators.FieldErrors(err),
	})
}
