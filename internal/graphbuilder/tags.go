package graphbuilder

// mirrorLegacyTags fills in a missing "shot" or "plan" tag from its
// counterpart when exactly one of the pair is set. Ground truth:
// computeTaskRepresentation in puliclient mirrors these two tags onto each
// other at serialization time so downstream tooling that only understands
// one of the two names still finds a value.
func mirrorLegacyTags(tags map[string]string) map[string]string {
	shot, hasShot := tags["shot"]
	plan, hasPlan := tags["plan"]
	if hasShot == hasPlan {
		return tags
	}
	out := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		out[k] = v
	}
	if hasShot && !hasPlan {
		out["plan"] = shot
	} else if hasPlan && !hasShot {
		out["shot"] = plan
	}
	return out
}
