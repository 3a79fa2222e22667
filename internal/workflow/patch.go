package workflow

import (
	"giftpos/internal/model"
)

// MaxProductionImages caps the reference images attached to an order.
const MaxProductionImages = 3

// ShippingPatch is a partial update of ShippingDetails. Nil fields are left
// untouched.
type ShippingPatch struct {
	Carrier          *string
	TrackingNumber   *string
	Notes            *string
	GuideFile        []byte
	GuideFileType    *string
	GuideFileName    *string
	ClearGuide       bool
	ProductionImages []string
	IsLocalDelivery  *bool
}

// Apply returns a new ShippingDetails with the patch applied on top of base.
// base is not modified.
func (p *ShippingPatch) Apply(base *model.ShippingDetails) (*model.ShippingDetails, error) {
	out := &model.ShippingDetails{}
	if base != nil {
		*out = *base
		out.GuideFile = append([]byte(nil), base.GuideFile...)
		out.ProductionImages = append([]string(nil), base.ProductionImages...)
	}
	if p == nil {
		return out, nil
	}
	if p.Carrier != nil {
		out.Carrier = *p.Carrier
	}
	if p.TrackingNumber != nil {
		out.TrackingNumber = *p.TrackingNumber
	}
	if p.Notes != nil {
		out.Notes = *p.Notes
	}
	if p.ClearGuide {
		out.GuideFile, out.GuideFileType, out.GuideFileName = nil, "", ""
	}
	if len(p.GuideFile) > 0 {
		out.GuideFile = append([]byte(nil), p.GuideFile...)
	}
	if p.GuideFileType != nil {
		out.GuideFileType = *p.GuideFileType
	}
	if p.GuideFileName != nil {
		out.GuideFileName = *p.GuideFileName
	}
	if p.ProductionImages != nil {
		if len(p.ProductionImages) > MaxProductionImages {
			return nil, &ValidationError{
				Field:   "shippingDetails.productionImages",
				Message: "máximo 3 imágenes de producción",
			}
		}
		out.ProductionImages = append([]string(nil), p.ProductionImages...)
	}
	if p.IsLocalDelivery != nil {
		out.IsLocalDelivery = *p.IsLocalDelivery
	}
	return out, nil
}
