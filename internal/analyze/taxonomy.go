package analyze

import "strings"

// DefaultTopics is the ministry list the classification prompts were written
// against. Deployments override it with TOPIC_TAXONOMY.
var DefaultTopics = []string{
	"Ministry of Agriculture and Farmers' Welfare",
	"Ministry of Animal Husbandry Dairying and Fisheries",
	"Ministry of AYUSH",
	"Ministry of Chemicals and Fertilizers",
	"Ministry of Civil Aviation",
	"Ministry of Coal",
	"Ministry of Commerce and Industry",
	"Ministry of Communications",
	"Ministry of Consumer Affairs Food and Public Distribution System",
	"Ministry of Cooperation",
	"Ministry of Corporate Affairs",
	"Ministry of Culture",
	"Ministry of Defence",
	"Ministry of Development of North Eastern Region",
	"Ministry of Earth Sciences",
	"Ministry of Education",
	"Ministry of Electronics and Information Technology",
	"Ministry of Environment Forest and Climate Change",
	"Ministry of Finance",
	"Ministry of Food Processing Industries",
	"Ministry of Health and Family Welfare",
	"Ministry of Heavy Industries",
	"Ministry of Home Affairs",
	"Ministry of Housing and Urban Affairs",
	"Ministry of Information and Broadcasting",
	"Ministry of Jal Shakti",
	"Ministry of Labour and Employment",
	"Ministry of Law and Justice",
	"Ministry of Micro Small and Medium Enterprises",
	"Ministry of Mines",
	"Ministry of Minority Affairs",
	"Ministry of New and Renewable Energy",
	"Ministry of Panchayati Raj",
	"Ministry of Parliamentary Affairs",
	"Ministry of Personnel Public Grievances and Pensions",
	"Ministry of Petroleum and Natural Gas",
	"Ministry of Ports Shipping and Waterways",
	"Ministry of Power",
	"Ministry of Railways",
	"Ministry of Road Transport and Highways",
	"Ministry of Rural Development",
	"Ministry of Science and Technology",
	"Ministry of Skill Development and Entrepreneurship",
	"Ministry of Social Justice and Empowerment",
	"Ministry of Statistics and Programme Implementation",
	"Ministry of Steel",
	"Ministry of Textiles",
	"Ministry of Tourism",
	"Ministry of Tribal Affairs",
	"Ministry of Women and Child Development",
	"Ministry of Youth Affairs and Sports",
	"Ministry of External Affairs",
	"Prime Minister's Office",
	"NITI Aayog",
}

// Taxonomy is the closed set of topics a Result may carry. Lookups ignore case
// and surrounding space and answer with the canonical spelling.
type Taxonomy struct {
	names  []string
	byFold map[string]string
}

// NewTaxonomy builds a taxonomy from names, falling back to DefaultTopics
// when names holds nothing usable.
func NewTaxonomy(names []string) *Taxonomy {
	t := &Taxonomy{byFold: make(map[string]string)}
	t.add(names)
	if len(t.names) == 0 {
		t.add(DefaultTopics)
	}
	return t
}

func (t *Taxonomy) add(names []string) {
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || IsUnknownTopic(n) {
			continue
		}
		if _, dup := t.byFold[key]; dup {
			continue
		}
		t.byFold[key] = n
		t.names = append(t.names, n)
	}
}

// Canonical returns the taxonomy spelling of topic.
func (t *Taxonomy) Canonical(topic string) (string, bool) {
	n, ok := t.byFold[strings.ToLower(strings.TrimSpace(topic))]
	return n, ok
}

// Names lists the taxonomy in its configured order.
func (t *Taxonomy) Names() []string {
	return append([]string(nil), t.names...)
}
