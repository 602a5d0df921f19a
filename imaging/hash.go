package imaging

import (
	"fmt"
	"math/bits"
	"sort"
	"strconv"

	"github.com/corona10/goimagehash"
	lrucache "github.com/hashicorp/golang-lru"
	log "github.com/sirupsen/logrus"

	"github.com/lelus78/WallpaperChanger-sub000/commons"
)

// Hamming distance thresholds over a 64-bit average hash
const (
	ExactMatch      int = 0  // identical images
	VerySimilar     int = 5  // nearly identical (minor edits, compression)
	Similar         int = 10 // similar composition/content
	SomewhatSimilar int = 15 // some similarities

	// DistanceUnknown is returned for malformed fingerprints so batch
	// comparisons degrade instead of failing.
	DistanceUnknown int = 999

	fingerprintHexDigits int = 16
)

// DuplicatePair describes two images found at or below a similarity threshold
type DuplicatePair struct {
	PathA    string
	PathB    string
	Distance int
}

// SimilarMatch describes a candidate image similar to a target image
type SimilarMatch struct {
	Path     string
	Distance int
}

// DuplicateDetector detects duplicate and similar images using perceptual hashing.
// Fingerprints are memoized per path, so repeated scans over the same cache
// directory do not re-decode unchanged files.
//
// All pairwise scans are O(n^2) over the supplied paths. That is fine for
// caches in the low thousands of images and is a known scaling limit.
type DuplicateDetector struct {
	fingerprints *lrucache.Cache
}

// NewDuplicateDetector creates a new DuplicateDetector
func NewDuplicateDetector() (*DuplicateDetector, error) {
	fingerprints, err := lrucache.New(commons.FingerprintCacheSizeDefault)
	if err != nil {
		return nil, err
	}

	return &DuplicateDetector{
		fingerprints: fingerprints,
	}, nil
}

// ComputeHash computes a 64-bit average-hash fingerprint for an image,
// encoded as 16 hex digits. Returns an error on decode failure.
func (detector *DuplicateDetector) ComputeHash(imagePath string) (string, error) {
	logger := log.WithFields(log.Fields{
		"package":  "imaging",
		"struct":   "DuplicateDetector",
		"function": "ComputeHash",
	})

	if cached, ok := detector.fingerprints.Get(imagePath); ok {
		if fingerprint, ok := cached.(string); ok {
			return fingerprint, nil
		}
	}

	img, err := loadImage(imagePath)
	if err != nil {
		logger.WithError(err).Debugf("failed to load image %q for hashing", imagePath)
		return "", err
	}

	hash, err := goimagehash.AverageHash(img)
	if err != nil {
		logger.WithError(err).Debugf("failed to hash image %q", imagePath)
		return "", err
	}

	fingerprint := fmt.Sprintf("%016x", hash.GetHash())
	detector.fingerprints.Add(imagePath, fingerprint)
	return fingerprint, nil
}

// HammingDistance counts differing bits between two fingerprints.
// Malformed fingerprints yield DistanceUnknown.
func (detector *DuplicateDetector) HammingDistance(fingerprintA string, fingerprintB string) int {
	a, okA := parseFingerprint(fingerprintA)
	b, okB := parseFingerprint(fingerprintB)
	if !okA || !okB {
		return DistanceUnknown
	}

	return bits.OnesCount64(a ^ b)
}

// FindDuplicates finds pairs of similar images among the given paths.
// Each hash is computed once; images that fail to hash are skipped.
func (detector *DuplicateDetector) FindDuplicates(imagePaths []string, threshold int) []DuplicatePair {
	logger := log.WithFields(log.Fields{
		"package":  "imaging",
		"struct":   "DuplicateDetector",
		"function": "FindDuplicates",
	})

	logger.Infof("Scanning %d images", len(imagePaths))

	hashedPaths := []string{}
	fingerprints := map[string]string{}
	for _, path := range imagePaths {
		fingerprint, err := detector.ComputeHash(path)
		if err != nil {
			continue
		}

		hashedPaths = append(hashedPaths, path)
		fingerprints[path] = fingerprint
	}

	logger.Infof("Computed fingerprints for %d images", len(hashedPaths))

	duplicates := []DuplicatePair{}
	for i, pathA := range hashedPaths {
		for _, pathB := range hashedPaths[i+1:] {
			distance := detector.HammingDistance(fingerprints[pathA], fingerprints[pathB])
			if distance <= threshold {
				duplicates = append(duplicates, DuplicatePair{
					PathA:    pathA,
					PathB:    pathB,
					Distance: distance,
				})
			}
		}
	}

	logger.Infof("Found %d similar pairs", len(duplicates))
	return duplicates
}

// FindSimilarTo finds candidate images similar to a target image,
// sorted ascending by distance.
func (detector *DuplicateDetector) FindSimilarTo(targetPath string, candidatePaths []string, threshold int) []SimilarMatch {
	targetFingerprint, err := detector.ComputeHash(targetPath)
	if err != nil {
		return nil
	}

	similar := []SimilarMatch{}
	for _, path := range candidatePaths {
		if path == targetPath {
			continue
		}

		candidateFingerprint, err := detector.ComputeHash(path)
		if err != nil {
			continue
		}

		distance := detector.HammingDistance(targetFingerprint, candidateFingerprint)
		if distance <= threshold {
			similar = append(similar, SimilarMatch{
				Path:     path,
				Distance: distance,
			})
		}
	}

	sort.SliceStable(similar, func(i int, j int) bool {
		return similar[i].Distance < similar[j].Distance
	})

	return similar
}

// IsDuplicateOf checks a new image against known fingerprints keyed by path.
// Returns the first match at or below the threshold, or nil.
func (detector *DuplicateDetector) IsDuplicateOf(imagePath string, existingFingerprints map[string]string, threshold int) *SimilarMatch {
	newFingerprint, err := detector.ComputeHash(imagePath)
	if err != nil {
		return nil
	}

	for existingPath, existingFingerprint := range existingFingerprints {
		distance := detector.HammingDistance(newFingerprint, existingFingerprint)
		if distance <= threshold {
			return &SimilarMatch{
				Path:     existingPath,
				Distance: distance,
			}
		}
	}

	return nil
}

// SimilarityDescription returns a human-readable label for a Hamming distance
func SimilarityDescription(distance int) string {
	switch {
	case distance == ExactMatch:
		return "Exact duplicate"
	case distance <= VerySimilar:
		return "Nearly identical"
	case distance <= Similar:
		return "Very similar"
	case distance <= SomewhatSimilar:
		return "Similar"
	default:
		return "Somewhat similar"
	}
}

func parseFingerprint(fingerprint string) (uint64, bool) {
	if len(fingerprint) != fingerprintHexDigits {
		return 0, false
	}

	value, err := strconv.ParseUint(fingerprint, 16, 64)
	if err != nil {
		return 0, false
	}

	return value, true
}
