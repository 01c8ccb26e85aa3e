package pos

import (
	"net/http"

	"github.com/all-if-r/5SCENT-WEB-sub001/api/controllers/endpoint"
	"github.com/all-if-r/5SCENT-WEB-sub001/api/validators"
	internalpos "github.com/all-if-r/5SCENT-WEB-sub001/internal/pos"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
)

type recordSaleRequest struct {
	Items []internalpos.SaleItem `json:"items" validate:"required,min=1,dive"`
	Note  string                 `json:"note" validate:"omitempty,max=255"`
}

// RecordSale debits stock for an in-store sale rung up by the caller.
func RecordSale(svc internalpos.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Handle(logg, "pos", svc != nil, func(r *http.Request) (int, any, error) {
		cashier, err := endpoint.CallerID(r)
		if err != nil {
			return endpoint.Fail(err)
		}
		var body recordSaleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return endpoint.Fail(err)
		}
		sale, err := svc.RecordSale(r.Context(), internalpos.RecordSaleInput{
			CashierID: cashier,
			Items:     body.Items,
			Note:      validators.SanitizeString(body.Note, 255),
		})
		if err != nil {
			return endpoint.Fail(err)
		}
		return endpoint.Created(sale)
	})
}
