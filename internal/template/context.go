package template

// MergeContexts merges multiple contexts into a single context.
// Later contexts override values from earlier contexts.
func MergeContexts(contexts ...map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	for _, ctx := range contexts {
		for key, value := range ctx {
			result[key] = value
		}
	}

	return result
}

// PackageContext returns the variables available to package descriptor
// values: root, name and version.
func PackageContext(root, name, version string) map[string]interface{} {
	return map[string]interface{}{
		"root":    root,
		"name":    name,
		"version": version,
	}
}
