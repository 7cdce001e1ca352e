package knowledge

import (
	_ "embed"
	"log/slog"
	"strings"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"gopkg.in/yaml.v3"
)

// topic names a keyword family in topics.yaml.
type topic string

const (
	topicFacility                   topic = "facility"
	topicThreeBHKPlan               topic = "three_bhk_plan"
	topicFourBHKPlan                topic = "four_bhk_plan"
	topicGroundFloor                topic = "ground_floor"
	topicBlockAZone                 topic = "block_a_zone"
	topicBlockBZone                 topic = "block_b_zone"
	topicCentralAmenities           topic = "central_amenities"
	topicUnitConfig                 topic = "unit_config"
	topicThreeBHKDetail             topic = "three_bhk_detail"
	topicFourBHKDetail              topic = "four_bhk_detail"
	topicRooms                      topic = "rooms"
	topicElevator                   topic = "elevator"
	topicParking                    topic = "parking"
	topicBrochureSpecifications     topic = "brochure_specifications"
	topicConstructionSpecifications topic = "construction_specifications"
	topicAmenities                  topic = "amenities"
	topicLocation                   topic = "location"
	topicPossession                 topic = "possession"
	topicDeveloper                  topic = "developer"
)

// fallbackSections are merged when the topical pass finds almost nothing.
var fallbackSections = []string{"unit_configurations", "pricing", "3bhk_unit_plan", "4bhk_unit_plan", "amenities", "location_details"}

// minSelected is the result size at or below which fallbackSections are merged.
const minSelected = 2

//go:embed topics.yaml
var topicsYAML []byte

var topics = mustParseTopics(topicsYAML)

func mustParseTopics(data []byte) map[topic][]string {
	var raw map[string]map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		panic("knowledge: invalid embedded topics: " + err.Error())
	}
	out := make(map[topic][]string, len(raw))
	for name, perLang := range raw {
		var all []string
		for _, lang := range []models.Language{models.LanguageEnglish, models.LanguageGujarati} {
			for _, kw := range perLang[string(lang)] {
				all = append(all, strings.ToLower(kw))
			}
		}
		out[topic(name)] = all
	}
	return out
}

type question string

func (q question) about(t topic) bool {
	for _, kw := range topics[t] {
		if strings.Contains(string(q), kw) {
			return true
		}
	}
	return false
}

// SelectRelevant returns the sections of lang's tree worth sending with question.
// Project identity is always included; topical sections are added per keyword family;
// when at most two sections result, commonly useful sections are merged in.
// The returned map is new but its values alias the tree, which must not be mutated.
func SelectRelevant(q string, base *Base, lang models.Language) map[string]any {
	tree := base.Tree(lang)
	out := make(map[string]any)
	text := question(strings.ToLower(q))

	copyIfPresent := func(dst, src string) {
		if v, ok := tree[src]; ok {
			out[dst] = v
		}
	}

	copyIfPresent("project_info", "project_info")

	if text.about(topicFacility) {
		switch {
		case text.about(topicThreeBHKPlan):
			selectUnitPlan(tree, out, "3bhk", "box_price_2650")
		case text.about(topicFourBHKPlan):
			selectUnitPlan(tree, out, "4bhk", "box_price_3850")
		}
		copyIfPresent("ground_floor_plan", "ground_floor_plan")
		if e, ok := section(tree, "construction_specifications")["elevator"]; ok {
			out["elevator"] = e
		}
	}

	if text.about(topicGroundFloor) {
		if gf, ok := tree["ground_floor_plan"].(map[string]any); ok {
			out["ground_floor_summary"] = valueOr(gf, "summary", "")
			out["ground_floor_overview"] = valueOr(gf, "site_overview", map[string]any{})
			for _, zone := range []topic{topicBlockAZone, topicBlockBZone, topicCentralAmenities} {
				if !text.about(zone) {
					continue
				}
				if z, ok := gf[string(zone)]; ok {
					out[string(zone)] = z
				}
			}
		}
	}

	if text.about(topicUnitConfig) {
		if configs, ok := tree["unit_configurations"].([]any); ok {
			out["unit_details"] = map[string]any{
				"3bhk": unitSummary(configs, "3BHK"),
				"4bhk": unitSummary(configs, "4BHK"),
			}
		}
		if text.about(topicThreeBHKDetail) {
			if d := planDetails(tree, "3bhk_unit_plan"); d != nil {
				out["3bhk_details"] = d
			}
		}
		if text.about(topicFourBHKDetail) {
			if d := planDetails(tree, "4bhk_unit_plan"); d != nil {
				out["4bhk_details"] = d
			}
		}
		copyIfPresent("pricing", "pricing")
	}

	if text.about(topicRooms) {
		copyIfPresent("3bhk_unit_plan", "3bhk_unit_plan")
		copyIfPresent("4bhk_unit_plan", "4bhk_unit_plan")
	}

	if text.about(topicElevator) {
		copyIfPresent("elevator", "elevator")
	}
	if text.about(topicParking) {
		copyIfPresent("parking", "parking")
	}
	if text.about(topicBrochureSpecifications) {
		copyIfPresent("specifications", "specifications")
	}
	if text.about(topicElevator) {
		if e, ok := section(tree, "construction_specifications")["elevator"]; ok {
			out["elevator"] = e
		}
		if gf, ok := tree["ground_floor_plan"].(map[string]any); ok {
			out["elevators_detail"] = map[string]any{
				"block_a": valueOr(section(gf, "block_a_zone"), "lift_lobby", map[string]any{}),
				"block_b": valueOr(section(gf, "block_b_zone"), "lift_lobby", map[string]any{}),
			}
		}
	}
	if text.about(topicConstructionSpecifications) {
		copyIfPresent("specifications", "construction_specifications")
	}
	if text.about(topicAmenities) {
		copyIfPresent("amenities", "amenities")
	}
	if text.about(topicLocation) {
		copyIfPresent("location_details", "location_details")
	}
	if text.about(topicPossession) {
		copyIfPresent("possession_details", "possession_details")
	}
	if text.about(topicDeveloper) {
		copyIfPresent("developer_portfolio", "developer_portfolio")
	}

	if len(out) <= minSelected {
		slog.Debug("knowledge.SelectRelevant: few sections matched, broadening", "matched", len(out))
		for _, s := range fallbackSections {
			copyIfPresent(s, s)
		}
	}
	slog.Debug("knowledge.SelectRelevant: sections selected", "language", lang, "count", len(out))
	return out
}

// selectUnitPlan narrows plan, price and parking to one configuration.
func selectUnitPlan(tree Tree, out map[string]any, kind, priceKey string) {
	plan, ok := tree[kind+"_unit_plan"]
	if !ok {
		return
	}
	out["unit_plan"] = plan
	out["pricing"] = map[string]any{kind: section(tree, "pricing")[priceKey]}
	out["parking"] = map[string]any{kind: section(tree, "parking")[kind+"_parking"]}
}

// unitSummary projects the configuration entry of the given type onto the fields the
// prompt needs. Missing entries or fields become empty strings.
func unitSummary(configs []any, unitType string) map[string]any {
	var match map[string]any
	for _, c := range configs {
		if m, ok := c.(map[string]any); ok && m["type"] == unitType {
			match = m
			break
		}
	}
	return map[string]any{
		"total_size":  valueOr(match, "size_sqft", ""),
		"carpet_area": valueOr(match, "carpet_area", ""),
		"size_yard":   valueOr(match, "size_sq_yard", ""),
		"price":       valueOr(match, "price_cr", ""),
	}
}

func planDetails(tree Tree, key string) map[string]any {
	plan, ok := tree[key].(map[string]any)
	if !ok {
		return nil
	}
	d := make(map[string]any, 3)
	for _, k := range []string{"overview", "special_features", "area_breakdown"} {
		if v, ok := plan[k]; ok {
			d[k] = v
		}
	}
	return d
}

// section returns tree[key] as an object, or nil when absent or not an object.
func section(tree map[string]any, key string) map[string]any {
	m, _ := tree[key].(map[string]any)
	return m
}

func valueOr(m map[string]any, key string, def any) any {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}
