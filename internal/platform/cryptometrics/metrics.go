// Package cryptometrics counts crypto-core operations. Counters carry
// no identifiers or key material, only totals.
package cryptometrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Set struct {
	keyGenerations  *prometheus.CounterVec
	encryptions     prometheus.Counter
	decryptions     prometheus.Counter
	decryptFailures prometheus.Counter
	payloadParses   prometheus.Counter
	parseFailures   prometheus.Counter
}

func New() *Set {
	return &Set{
		keyGenerations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nonmsg_key_generations_total",
			Help: "Key pair generations by tier (random, contact, full).",
		}, []string{"tier"}),
		encryptions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nonmsg_message_encryptions_total",
			Help: "Hybrid message encryptions.",
		}),
		decryptions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nonmsg_message_decryptions_total",
			Help: "Successful hybrid message decryptions.",
		}),
		decryptFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nonmsg_message_decrypt_failures_total",
			Help: "Failed hybrid message decryptions.",
		}),
		payloadParses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nonmsg_pairing_payload_parses_total",
			Help: "Successful pairing payload parses.",
		}),
		parseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nonmsg_pairing_payload_parse_failures_total",
			Help: "Rejected pairing payloads.",
		}),
	}
}

// Register attaches every collector to r.
func (s *Set) Register(r prometheus.Registerer) error {
	if s == nil || r == nil {
		return nil
	}
	for _, c := range []prometheus.Collector{
		s.keyGenerations, s.encryptions, s.decryptions,
		s.decryptFailures, s.payloadParses, s.parseFailures,
	} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Set) KeyGenerated(tier string) {
	if s == nil {
		return
	}
	s.keyGenerations.WithLabelValues(tier).Inc()
}

func (s *Set) MessageEncrypted() {
	if s == nil {
		return
	}
	s.encryptions.Inc()
}

func (s *Set) MessageDecrypted(ok bool) {
	if s == nil {
		return
	}
	if ok {
		s.decryptions.Inc()
		return
	}
	s.decryptFailures.Inc()
}

func (s *Set) PayloadParsed(ok bool) {
	if s == nil {
		return
	}
	if ok {
		s.payloadParses.Inc()
		return
	}
	s.parseFailures.Inc()
}
