package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Service talks to the payment gateway boundary. The gateway itself is a
// black box; this only flips an order's payment state.
type Service struct {
	log        *slog.Logger
	orders     OrderStore
	gatewayURL string
}

func NewService(log *slog.Logger, orders OrderStore, gatewayURL string) *Service {
	return &Service{log: log, orders: orders, gatewayURL: gatewayURL}
}

// Initiate moves an order to pending and returns the gateway redirect
// URL. Fails with domain.ErrAlreadyPaid on a paid order.
func (s *Service) Initiate(ctx context.Context, orderID string) (string, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	externalID := "PAY-" + o.ID
	if err := o.StartPayment(externalID); err != nil {
		return "", err
	}
	if err := s.orders.UpdatePayment(ctx, o.ID, o.PaymentStatus, o.PaymentExternalID); err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/pay?orderId=%s", s.gatewayURL, o.ID)
	s.log.Info("payment initiated", "order_id", o.ID, "external_id", externalID)
	return url, nil
}

// HandleCallback applies the gateway's verdict for an external payment
// id: SUCCESS marks the order paid, anything else cancels the payment.
func (s *Service) HandleCallback(ctx context.Context, externalID, gatewayStatus string) error {
	o, err := s.orders.FindByPaymentExternalID(ctx, externalID)
	if err != nil {
		return err
	}
	o.SettlePayment(strings.EqualFold(gatewayStatus, "SUCCESS"))
	if err := s.orders.UpdatePayment(ctx, o.ID, o.PaymentStatus, o.PaymentExternalID); err != nil {
		return err
	}
	s.log.Info("payment callback handled", "order_id", o.ID, "external_id", externalID, "status", o.PaymentStatus)
	return nil
}
