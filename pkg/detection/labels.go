package detection

import "strings"

// COCOLabels are the 80 classes of the COCO dataset, the default label set
var COCOLabels = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier",
	"toothbrush",
}

// common names vision models use for COCO classes
var cocoAliases = map[string]string{
	"people":       "person",
	"man":          "person",
	"woman":        "person",
	"child":        "person",
	"pedestrian":   "person",
	"bike":         "bicycle",
	"motorbike":    "motorcycle",
	"plane":        "airplane",
	"aeroplane":    "airplane",
	"sofa":         "couch",
	"tv monitor":   "tv",
	"television":   "tv",
	"monitor":      "tv",
	"phone":        "cell phone",
	"cellphone":    "cell phone",
	"mobile phone": "cell phone",
	"table":        "dining table",
	"hair dryer":   "hair drier",
	"ball":         "sports ball",
	"plant":        "potted plant",
}

// LabelMap resolves free-form model labels to a fixed class vocabulary
type LabelMap struct {
	classes map[string]string
	aliases map[string]string
	strict  bool
}

// NewLabelMap builds a map over labels (COCOLabels when empty). With strict set,
// labels outside the vocabulary are dropped instead of passed through.
func NewLabelMap(labels []string, strict bool) *LabelMap {
	aliases := map[string]string{}
	if len(labels) == 0 {
		labels = COCOLabels
		aliases = cocoAliases
	}

	m := &LabelMap{
		classes: make(map[string]string, len(labels)),
		aliases: aliases,
		strict:  strict,
	}
	for _, l := range labels {
		m.classes[normalizeLabel(l)] = l
	}
	return m
}

// Resolve returns the class for label and whether it should be kept
func (m *LabelMap) Resolve(label string) (string, bool) {
	key := normalizeLabel(label)
	if key == "" {
		return "", false
	}
	if class, ok := m.classes[key]; ok {
		return class, true
	}
	if canonical, ok := m.aliases[key]; ok {
		if class, ok := m.classes[canonical]; ok {
			return class, true
		}
	}
	// plural forms: "cars" -> "car"
	if strings.HasSuffix(key, "s") {
		if class, ok := m.classes[strings.TrimSuffix(key, "s")]; ok {
			return class, true
		}
	}
	if m.strict {
		return "", false
	}
	return key, true
}

func normalizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	label = strings.NewReplacer("_", " ", "-", " ").Replace(label)
	return strings.Join(strings.Fields(label), " ")
}
