package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Métricas de negócio
	VoiceCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terra_voice_commands_total",
		Help: "Total de comandos de voz processados",
	}, []string{"intent", "status"})

	VoiceLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "terra_voice_latency_seconds",
		Help:    "Latência de processamento de um enunciado",
		Buckets: prometheus.DefBuckets,
	})

	IntentConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "terra_intent_confidence",
		Help:    "Confiança da classificação de intenção",
		Buckets: []float64{0.1, 0.3, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
	})

	ClarificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terra_clarifications_total",
		Help: "Total de turnos que terminaram com perguntas de esclarecimento",
	}, []string{"intent"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "terra_active_sessions",
		Help: "Número de sessões de diálogo em memória",
	})

	// Métricas de infraestrutura
	PersistenceFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terra_persistence_failures_total",
		Help: "Total de falhas ao gravar comandos",
	}, []string{"reason"})

	DatabaseLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "terra_database_latency_seconds",
		Help:    "Latência de gravação no banco",
		Buckets: prometheus.DefBuckets,
	})

	TranscriptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terra_transcriptions_total",
		Help: "Total de transcrições de áudio",
	}, []string{"status"})
)

var (
	// Métricas de transporte
	GRPCRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terra_grpc_requests_total",
		Help: "Total de requisições gRPC por método e código de status",
	}, []string{"method", "status"})

	GRPCRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "terra_grpc_request_duration_seconds",
		Help:    "Duração das requisições gRPC por método",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terra_http_requests_total",
		Help: "Total de requisições HTTP por rota e status",
	}, []string{"route", "status"})

	WebSocketConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "terra_websocket_connections",
		Help: "Conexões WebSocket abertas por canal",
	}, []string{"channel"})
)
