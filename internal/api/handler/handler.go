package handler

import (
	"github.com/d60-Lab/quantum-checkout/config"
	"github.com/d60-Lab/quantum-checkout/internal/gateway"
	"github.com/d60-Lab/quantum-checkout/internal/repository"
	"github.com/d60-Lab/quantum-checkout/internal/service"
)

// Handler 聚合全部 HTTP handler 的依赖
type Handler struct {
	cfg       *config.Config
	checkout  *service.CheckoutService
	reconcile *service.ReconcileService
	notifier  *service.Notifier
	payments  repository.PaymentRepository
	gw        gateway.Client
}

func New(
	cfg *config.Config,
	checkout *service.CheckoutService,
	reconcile *service.ReconcileService,
	notifier *service.Notifier,
	payments repository.PaymentRepository,
	gw gateway.Client,
) *Handler {
	return &Handler{
		cfg:       cfg,
		checkout:  checkout,
		reconcile: reconcile,
		notifier:  notifier,
		payments:  payments,
		gw:        gw,
	}
}
