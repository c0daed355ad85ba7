package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	MethodCard   = "card"
	MethodOnSite = "on_site"
)

var (
	// ErrUnsupportedMethod is returned for a payment method no gateway handles.
	ErrUnsupportedMethod = errors.New("unsupported payment method")
	// ErrRefundUnsupported is returned when the method's gateway cannot refund.
	ErrRefundUnsupported = errors.New("refund not supported")
)

// Request is one charge for a booking.
type Request struct {
	Method         string
	Token          string
	Amount         float64
	Currency       string
	Description    string
	ReceiptEmail   string
	IdempotencyKey string
}

// Result reports whether the money was collected. A gateway that accepted the
// request but did not collect returns Succeeded=false and no error.
type Result struct {
	Succeeded bool
	Reference string
}

// Gateway collects a payment.
type Gateway interface {
	Charge(ctx context.Context, req Request) (Result, error)
}

// Refunder is implemented by gateways that can give a collected charge back.
type Refunder interface {
	Refund(ctx context.Context, reference string) error
}

// Processor routes a request to the gateway registered for its method.
type Processor struct {
	gateways map[string]Gateway
}

func NewProcessor() *Processor {
	p := &Processor{gateways: map[string]Gateway{}}
	p.Register(MethodOnSite, OnSite{})
	return p
}

func (p *Processor) Register(method string, gateway Gateway) {
	p.gateways[normalizeMethod(method)] = gateway
}

func (p *Processor) Charge(ctx context.Context, req Request) (Result, error) {
	method := normalizeMethod(req.Method)
	gateway, ok := p.gateways[method]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}
	req.Method = method
	return gateway.Charge(ctx, req)
}

// Refund returns the charge identified by reference through the gateway of
// method.
func (p *Processor) Refund(ctx context.Context, method, reference string) error {
	gateway, ok := p.gateways[normalizeMethod(method)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}
	refunder, ok := gateway.(Refunder)
	if !ok {
		return fmt.Errorf("%w for %q", ErrRefundUnsupported, method)
	}
	return refunder.Refund(ctx, reference)
}

// Supports reports whether a gateway is registered for method.
func (p *Processor) Supports(method string) bool {
	_, ok := p.gateways[normalizeMethod(method)]
	return ok
}

func normalizeMethod(method string) string {
	switch m := strings.ToLower(strings.TrimSpace(method)); m {
	case "sur_place", "onsite", "on-site":
		return MethodOnSite
	case "stripe", "carte":
		return MethodCard
	default:
		return m
	}
}

// OnSite is paid at the appointment: nothing is collected at booking time.
type OnSite struct{}

func (OnSite) Charge(_ context.Context, _ Request) (Result, error) {
	return Result{Succeeded: false}, nil
}
