// Package labels turns raw panoptic segmentation output into a short,
// ranked list of canonical labels.
package labels

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// mergeSuffixes are the COCO panoptic decorations stripped before lookup.
// They are removed in this order, wherever they occur.
var mergeSuffixes = []string{"-merged", "-other", "-stuff"}

// canonicalTable folds the COCO panoptic vocabulary onto the names captions use.
var canonicalTable = map[string]string{
	"person": "person", "man": "person", "woman": "person",
	"bicycle": "bicycle", "bike": "bicycle", "motorcycle": "motorcycle",
	"car": "car", "bus": "bus", "train": "train", "truck": "truck",
	"traffic light": "traffic light", "fire hydrant": "fire hydrant",
	"stop sign": "stop sign", "parking meter": "parking meter",
	"bench": "bench", "bird": "bird", "cat": "cat", "dog": "dog",
	"horse": "horse", "sheep": "sheep", "cow": "cow", "elephant": "elephant",
	"bear": "bear", "zebra": "zebra", "giraffe": "giraffe",
	"backpack": "backpack", "umbrella": "umbrella", "handbag": "handbag",
	"tie": "tie", "suitcase": "suitcase", "frisbee": "frisbee", "skis": "skis",
	"snowboard": "snowboard", "sports ball": "ball", "kite": "kite",
	"baseball bat": "baseball bat", "baseball glove": "baseball glove",
	"skateboard": "skateboard", "surfboard": "surfboard", "tennis racket": "tennis racket",
	"bottle": "bottle", "wine glass": "wine glass", "cup": "cup", "fork": "fork",
	"knife": "knife", "spoon": "spoon", "bowl": "bowl", "banana": "banana",
	"apple": "apple", "sandwich": "sandwich", "orange": "orange", "broccoli": "broccoli",
	"carrot": "carrot", "hot dog": "hot dog", "pizza": "pizza", "donut": "donut",
	"cake": "cake", "chair": "chair", "couch": "sofa",
	"potted plant": "potted plant", "bed": "bed", "dining table": "table",
	"toilet": "toilet", "tv": "tv", "laptop": "laptop", "mouse": "mouse",
	"remote": "remote", "keyboard": "keyboard", "cell phone": "phone",
	"microwave": "microwave", "oven": "oven", "toaster": "toaster", "sink": "sink",
	"refrigerator": "fridge", "book": "book", "clock": "clock", "vase": "vase",
	"scissors": "scissors", "teddy bear": "teddy bear", "hair drier": "hair dryer",
	"toothbrush": "toothbrush",
	"road": "road", "sidewalk": "sidewalk", "building": "building", "wall": "wall",
	"fence": "fence", "pole": "pole", "sky": "sky", "ground": "ground",
	"grass": "grass", "river": "river", "sea": "sea", "water": "water",
	"mountain": "mountain", "tree": "tree", "snow": "snow", "sand": "sand",
}

// Canonicalize maps a raw segmentation label onto the canonical vocabulary.
// Labels outside the table come back normalized but otherwise unchanged.
// The empty string canonicalizes to itself.
func Canonicalize(raw string) string {
	l := normalize(raw)
	if c, ok := canonicalTable[l]; ok {
		return c
	}
	return l
}

func normalize(raw string) string {
	l := strings.ToLower(strings.TrimSpace(norm.NFKC.String(raw)))
	for _, suffix := range mergeSuffixes {
		l = strings.ReplaceAll(l, suffix, "")
	}
	return strings.ReplaceAll(l, "-", " ")
}

// IsCanonical reports whether label is one of the canonical names.
func IsCanonical(label string) bool {
	for _, c := range canonicalTable {
		if c == label {
			return true
		}
	}
	return false
}

// Vocabulary returns the distinct canonical names, sorted.
func Vocabulary() []string {
	seen := make(map[string]struct{}, len(canonicalTable))
	out := make([]string, 0, len(canonicalTable))
	for _, c := range canonicalTable {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
