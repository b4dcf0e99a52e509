package testkit

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"gocausal/adapters/excel"
)

// CallCenterConfig configures the synthetic call-center generator.
//
// Agent skill drives deal volume, call duration, win rate and the chance of
// showing the focus behaviour, which plants selection bias into naive comparisons.
// TreatmentEffect is the true additive lift of the focus behaviour on win probability.
type CallCenterConfig struct {
	AgentCount         int      `json:"agent_count"`
	MinDeals           int      `json:"min_deals"`
	MaxDeals           int      `json:"max_deals"`
	CallsPerDeal       int      `json:"calls_per_deal"`
	Tags               []string `json:"tags"`
	FocusTag           string   `json:"focus_tag"`
	BaseWinRate        float64  `json:"base_win_rate"`
	SkillWinLift       float64  `json:"skill_win_lift"`
	TreatmentEffect    float64  `json:"treatment_effect"`
	SkillTreatmentBias float64  `json:"skill_treatment_bias"`
	BaseOnsiteRate     float64  `json:"base_onsite_rate"`
	Keyword            string   `json:"keyword"`
	Segments           []string `json:"segments"`
	Seed               int64    `json:"seed"`
}

// DefaultCallCenterConfig returns a population large enough for matching to find pairs.
func DefaultCallCenterConfig() CallCenterConfig {
	return CallCenterConfig{
		AgentCount:         60,
		MinDeals:           4,
		MaxDeals:           40,
		CallsPerDeal:       2,
		Tags:               []string{"empathy_shown", "price_anchor", "onsite_invite", "urgency_close"},
		FocusTag:           "empathy_shown",
		BaseWinRate:        0.15,
		SkillWinLift:       0.40,
		TreatmentEffect:    0.05,
		SkillTreatmentBias: 0.80,
		BaseOnsiteRate:     0.30,
		Keyword:            "上门",
		Segments:           []string{"1", "2", "3"},
		Seed:               42,
	}
}

// GroundTruth records the latent variables behind a generated population.
type GroundTruth struct {
	Skill   map[string]float64
	Treated map[string]bool
}

// TreatedAgents returns the treated agent ids, sorted.
func (g GroundTruth) TreatedAgents() []string {
	var out []string
	for id, t := range g.Treated {
		if t {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// CallCenterGenerator produces workbook tables for a synthetic call center.
type CallCenterGenerator struct {
	config CallCenterConfig
	rng    *rand.Rand
}

// NewCallCenterGenerator creates a generator; equal seeds give equal tables.
func NewCallCenterGenerator(config CallCenterConfig) *CallCenterGenerator {
	return &CallCenterGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate builds deals, calls, tag scores, transcripts and the tag catalogue.
func (g *CallCenterGenerator) Generate() (*excel.Tables, GroundTruth, error) {
	if g.config.AgentCount <= 0 {
		return nil, GroundTruth{}, fmt.Errorf("agent count must be positive")
	}
	if g.config.MinDeals <= 0 || g.config.MaxDeals < g.config.MinDeals {
		return nil, GroundTruth{}, fmt.Errorf("invalid deal range [%d, %d]", g.config.MinDeals, g.config.MaxDeals)
	}

	t := &excel.Tables{}
	truth := GroundTruth{Skill: map[string]float64{}, Treated: map[string]bool{}}

	for _, code := range g.config.Tags {
		t.Tags = append(t.Tags, excel.Tag{Code: code, Name: tagName(code), Active: true})
	}

	dealSeq, callSeq := 0, 0
	for i := 0; i < g.config.AgentCount; i++ {
		agentID := fmt.Sprintf("agent_%03d", i+1)
		skill := g.rng.Float64()
		treated := g.rng.Float64() < clamp(0.1+g.config.SkillTreatmentBias*skill, 0, 0.95)
		truth.Skill[agentID] = skill
		truth.Treated[agentID] = treated

		span := float64(g.config.MaxDeals - g.config.MinDeals)
		deals := g.config.MinDeals + int(math.Round(skill*span*(0.8+0.4*g.rng.Float64())))
		if deals > g.config.MaxDeals {
			deals = g.config.MaxDeals
		}
		meanDuration := 120 + 480*skill

		winP := clamp(g.config.BaseWinRate+g.config.SkillWinLift*skill, 0, 1)
		if treated {
			winP = clamp(winP+g.config.TreatmentEffect, 0, 1)
		}
		onsiteP := clamp(g.config.BaseOnsiteRate+0.2*skill, 0, 1)

		for d := 0; d < deals; d++ {
			dealSeq++
			dealID := fmt.Sprintf("%d", dealSeq)
			outcome := "lost"
			if g.rng.Float64() < winP {
				outcome = "won"
			}
			t.Deals = append(t.Deals, excel.Deal{
				ID:              dealID,
				AgentID:         agentID,
				Outcome:         outcome,
				OnsiteCompleted: g.rng.Float64() < onsiteP,
				Segment:         g.segment(),
			})
			t.Transcripts = append(t.Transcripts, excel.Transcript{
				ID:      dealID,
				DealID:  dealID,
				AgentID: agentID,
				Content: g.transcript(skill),
			})

			for c := 0; c < g.config.CallsPerDeal; c++ {
				callSeq++
				callID := fmt.Sprintf("%d", callSeq)
				t.Calls = append(t.Calls, excel.Call{
					ID:              callID,
					AgentID:         agentID,
					DurationSeconds: math.Round(meanDuration * (0.6 + 0.8*g.rng.Float64())),
				})
				for _, code := range g.config.Tags {
					t.CallTags = append(t.CallTags, excel.CallTag{
						CallID:  callID,
						TagCode: code,
						Score:   g.score(code, treated, d == 0 && c == 0),
					})
				}
			}
		}
	}
	return t, truth, nil
}

// score keeps untreated agents below the 80 cutoff on the focus tag, so the
// ground truth equals the tag classification at intensity threshold 0. The first
// call of a treated agent always clears the cutoff.
func (g *CallCenterGenerator) score(code string, treated, first bool) float64 {
	if code != g.config.FocusTag {
		return math.Round(g.rng.Float64() * 100)
	}
	if treated && (first || g.rng.Float64() < 0.6) {
		return float64(80 + g.rng.Intn(21))
	}
	return float64(20 + g.rng.Intn(60))
}

func (g *CallCenterGenerator) segment() string {
	if len(g.config.Segments) == 0 {
		return ""
	}
	return g.config.Segments[g.rng.Intn(len(g.config.Segments))]
}

var fillerPhrases = []string{
	"您好，请问漏水的位置在哪里",
	"we will send a quote by message",
	"师傅明天有空",
	"could you share a photo of the ceiling",
	"价格包含材料费",
}

func (g *CallCenterGenerator) transcript(skill float64) string {
	parts := []string{fillerPhrases[g.rng.Intn(len(fillerPhrases))]}
	if g.config.Keyword != "" && g.rng.Float64() < 0.2+0.6*skill {
		parts = append(parts, "可以安排"+g.config.Keyword+"检测")
	}
	parts = append(parts, fillerPhrases[g.rng.Intn(len(fillerPhrases))])
	return strings.Join(parts, " ")
}

func tagName(code string) string {
	words := strings.Split(code, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
