package model

import (
	"time"
)

// Order is the entitlement record created once a purchase completes.
// It grants the right to download a fixed set of high resolution images.
type Order struct {
	OrderID       string          `json:"orderId"`
	BuyerEmail    string          `json:"email"`
	PaymentMethod string          `json:"paymentMethod"`
	Items         []OrderItem     `json:"items"`
	Total         float64         `json:"total"`
	DownloadCode  string          `json:"downloadCode"`
	DownloadLink  string          `json:"downloadLink"`
	CreatedAt     time.Time       `json:"createdAt"`
	Used          bool            `json:"used"`
	Downloads     []DownloadEvent `json:"downloads,omitempty"`
}

// OrderItem is a single purchased image.
type OrderItem struct {
	ImageID     string   `json:"imageId"`
	ActressID   string   `json:"actressId"`
	ActressName string   `json:"actressName"`
	HQURL       string   `json:"hqUrl"`
	ImageURL    string   `json:"imageUrl"`
	Width       *int     `json:"width,omitempty"`
	Height      *int     `json:"height,omitempty"`
	FileSizeMB  *float64 `json:"fileSizeMB,omitempty"`
}

// DownloadEvent records the first retrieval of one item.
type DownloadEvent struct {
	ItemID       string    `json:"imageId"`
	DownloadedAt time.Time `json:"downloadedAt"`
}

// Clone returns a deep copy so callers can never mutate cached state.
func (o Order) Clone() Order {
	out := o
	if o.Items != nil {
		out.Items = make([]OrderItem, len(o.Items))
		for i, item := range o.Items {
			out.Items[i] = item.clone()
		}
	}
	if o.Downloads != nil {
		out.Downloads = make([]DownloadEvent, len(o.Downloads))
		copy(out.Downloads, o.Downloads)
	}
	return out
}

func (i OrderItem) clone() OrderItem {
	out := i
	if i.Width != nil {
		w := *i.Width
		out.Width = &w
	}
	if i.Height != nil {
		h := *i.Height
		out.Height = &h
	}
	if i.FileSizeMB != nil {
		s := *i.FileSizeMB
		out.FileSizeMB = &s
	}
	return out
}

// HasItem reports whether imageID belongs to the order.
func (o *Order) HasItem(imageID string) bool {
	return o.Item(imageID) != nil
}

// Item returns the purchased item with the given image ID, or nil.
func (o *Order) Item(imageID string) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ImageID == imageID {
			return &o.Items[i]
		}
	}
	return nil
}

// IsDownloaded reports whether a download event exists for itemID.
func (o *Order) IsDownloaded(itemID string) bool {
	for _, d := range o.Downloads {
		if d.ItemID == itemID {
			return true
		}
	}
	return false
}

// OrderRequest is the completed purchase handed over by checkout.
type OrderRequest struct {
	BuyerEmail    string             `json:"email"`
	PaymentMethod string             `json:"paymentMethod"`
	Items         []OrderItemRequest `json:"items"`
	Total         float64            `json:"total"`
}

// OrderItemRequest is a single purchased image in a checkout payload.
type OrderItemRequest struct {
	ImageID     string   `json:"imageId"`
	ActressID   string   `json:"actressId"`
	ActressName string   `json:"actressName"`
	HQURL       string   `json:"hqUrl"`
	ImageURL    string   `json:"imageUrl"`
	Width       *int     `json:"width,omitempty"`
	Height      *int     `json:"height,omitempty"`
	FileSizeMB  *float64 `json:"fileSizeMB,omitempty"`
}

// CheckoutResponse is returned to checkout once the entitlement exists.
type CheckoutResponse struct {
	OrderID      string `json:"orderId"`
	DownloadCode string `json:"downloadCode"`
	DownloadLink string `json:"downloadLink"`
}

// DownloadView is what the download page renders for a code.
type DownloadView struct {
	OrderID string             `json:"orderId"`
	Email   string             `json:"email"`
	Code    string             `json:"code"`
	Used    bool               `json:"used"`
	Items   []DownloadItemView `json:"items"`
}

// DownloadItemView adds per-item redemption status to an OrderItem.
type DownloadItemView struct {
	OrderItem
	Downloaded bool `json:"downloaded"`
}

// NewDownloadView builds the download page view of an order.
func NewDownloadView(o *Order) DownloadView {
	items := make([]DownloadItemView, len(o.Items))
	for i, item := range o.Items {
		items[i] = DownloadItemView{
			OrderItem:  item,
			Downloaded: o.IsDownloaded(item.ImageID),
		}
	}
	return DownloadView{
		OrderID: o.OrderID,
		Email:   o.BuyerEmail,
		Code:    o.DownloadCode,
		Used:    o.Used,
		Items:   items,
	}
}

// RedeemRequest asks to retrieve one item of the order behind a code.
type RedeemRequest struct {
	Code    string `json:"code"`
	ImageID string `json:"imageId"`
}

// RedeemResponse tells the download page where the asset is and whether
// the code has now expired.
type RedeemResponse struct {
	OrderID string `json:"orderId"`
	ImageID string `json:"imageId"`
	HQURL   string `json:"hqUrl"`
	Used    bool   `json:"used"`
	NowUsed bool   `json:"nowUsed"`
}

// MarkUsedRequest is the administrative revocation payload.
type MarkUsedRequest struct {
	Code string `json:"code"`
}
