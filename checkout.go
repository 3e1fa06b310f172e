package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type basketItem struct {
	EventID      int `json:"event_id"`
	EventChainID int `json:"event_chain_id"`
	MemberID     int `json:"member_id"`
}

type addItemRequest struct {
	EntireBasket bool         `json:"entire_basket"`
	Items        []basketItem `json:"items"`
}

type checkoutRequest struct {
	Client struct {
		ID int `json:"id"`
	} `json:"client"`
}

// Checkout puts the slot in the member's basket and checks it out.
func (b *Bot) Checkout(ctx context.Context, slot Slot) error {
	if b.memberID == 0 {
		return fmt.Errorf("%w: not logged in", ErrCheckout)
	}
	b.log.WithField("event_id", slot.EventID).Info("checking out slot")

	add := addItemRequest{
		EntireBasket: true,
		Items: []basketItem{{
			EventID:      slot.EventID,
			EventChainID: slot.EventChainID,
			MemberID:     b.memberID,
		}},
	}
	if err := b.postJSON(ctx, "basket/add_item", add); err != nil {
		return fmt.Errorf("%w: add item: %w", ErrCheckout, err)
	}

	var checkout checkoutRequest
	checkout.Client.ID = b.memberID
	if err := b.postJSON(ctx, "basket/checkout", checkout); err != nil {
		return fmt.Errorf("%w: %w", ErrCheckout, err)
	}
	return nil
}

func (b *Bot) postJSON(ctx context.Context, endpoint string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/%d/%s", b.cfg.APIURL, b.cfg.SiteID, endpoint)
	res, err := b.do(ctx, http.MethodPost, u, bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return checkStatus(res)
}
