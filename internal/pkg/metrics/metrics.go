// internal/pkg/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "offer_wizard"

// WizardMetrics 记录优惠创建向导各步骤的提交情况以及最终提交的耗时。
type WizardMetrics struct {
	steps          *prometheus.CounterVec
	commits        *prometheus.CounterVec
	commitDuration prometheus.Histogram
}

// NewWizardMetrics 在给定的 Registerer 上注册所有指标。
// 生产环境传 prometheus.DefaultRegisterer，测试中传独立的 Registry。
func NewWizardMetrics(reg prometheus.Registerer) *WizardMetrics {
	m := &WizardMetrics{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Number of wizard step submissions by step and outcome.",
		}, []string{"step", "outcome"}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Number of offer commits by mode (create/update) and outcome.",
		}, []string{"mode", "outcome"}),
		commitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_duration_seconds",
			Help:      "Latency of the atomic offer commit.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.steps, m.commits, m.commitDuration)
	return m
}

// StepSubmitted outcome 取值: advanced / invalid / redirected / error
func (m *WizardMetrics) StepSubmitted(step, outcome string) {
	m.steps.WithLabelValues(step, outcome).Inc()
}

func (m *WizardMetrics) Committed(mode, outcome string, elapsed time.Duration) {
	m.commits.WithLabelValues(mode, outcome).Inc()
	m.commitDuration.Observe(elapsed.Seconds())
}
