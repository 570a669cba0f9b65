// Package metrics содержит Prometheus-метрики сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PurchaseTransitions считает переходы покупок по целевому статусу и результату.
var PurchaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rewardadmin",
	Name:      "purchase_transitions_total",
	Help:      "Purchase status transitions by target status and outcome.",
}, []string{"status", "outcome"})

// Refunds считает попытки зачисления возвратов.
var Refunds = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rewardadmin",
	Name:      "refunds_total",
	Help:      "Refund attempts by outcome.",
}, []string{"outcome"})

// CatalogMutations считает изменения каталога по операциям.
var CatalogMutations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rewardadmin",
	Name:      "catalog_mutations_total",
	Help:      "Catalog mutations by operation.",
}, []string{"operation"})

// OrphanedImages считает изображения, которые не удалось удалить после сбоя записи.
var OrphanedImages = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "rewardadmin",
	Name:      "orphaned_images_total",
	Help:      "Uploaded images left without a referencing record.",
})

const (
	OutcomeOK       = "ok"
	OutcomeConflict = "conflict"
	OutcomeFailed   = "failed"
	OutcomeCredited = "credited"
	OutcomeSkipped  = "skipped"
)
