package schema

/*
Published returns the restricted schema view used for content destined for
public consumption.

# Projection rules

  - adminOnly entity and component types are dropped.
  - entity types with publishable=false are dropped.
  - adminOnly fields are dropped.
  - Reference, RichText, and Component fields whose declared target sets
    become empty after the type drops are themselves dropped.
  - patterns and indexes no longer referenced by any surviving field or
    authKeyPattern are dropped.

The projection is deterministic (declaration order is preserved) and
idempotent: projecting a published schema again yields an equal spec. The
result is memoized per schema instance since it is derived per-request.
*/
func (schema *Schema) Published() *Schema {
	schema.publishedOnce.Do(func() {
		if schema.published {
			schema.publishedView = schema
			return
		}
		schema.publishedView = newSchema(projectPublished(schema.spec), true)
	})
	return schema.publishedView
}

func projectPublished(spec Spec) Spec {
	published := Spec{
		Version:    spec.Version,
		Migrations: spec.Migrations,
	}

	// 1. Decide which types survive.
	keepEntity := make(map[string]bool, len(spec.EntityTypes))
	for _, entityType := range spec.EntityTypes {
		if entityType.Publishable && !entityType.AdminOnly {
			keepEntity[entityType.Name] = true
		}
	}
	keepComponent := make(map[string]bool, len(spec.ComponentTypes))
	for _, componentType := range spec.ComponentTypes {
		if !componentType.AdminOnly {
			keepComponent[componentType.Name] = true
		}
	}

	// 2. Project fields of the surviving types.
	usedPatterns := make(map[string]bool)
	usedIndexes := make(map[string]bool)

	for _, entityType := range spec.EntityTypes {
		if !keepEntity[entityType.Name] {
			continue
		}
		projected := entityType
		projected.Fields = projectFields(entityType.Fields, keepEntity, keepComponent, usedPatterns, usedIndexes)
		if projected.AuthKeyPattern != "" {
			usedPatterns[projected.AuthKeyPattern] = true
		}
		if projected.NameField != "" && findField(projected.Fields, projected.NameField) == nil {
			projected.NameField = ""
		}
		published.EntityTypes = append(published.EntityTypes, projected)
	}

	for _, componentType := range spec.ComponentTypes {
		if !keepComponent[componentType.Name] {
			continue
		}
		projected := componentType
		projected.Fields = projectFields(componentType.Fields, keepEntity, keepComponent, usedPatterns, usedIndexes)
		published.ComponentTypes = append(published.ComponentTypes, projected)
	}

	// 3. Keep only patterns and indexes still referenced.
	for _, pattern := range spec.Patterns {
		if usedPatterns[pattern.Name] {
			published.Patterns = append(published.Patterns, pattern)
		}
	}
	for _, index := range spec.Indexes {
		if usedIndexes[index.Name] {
			published.Indexes = append(published.Indexes, index)
		}
	}

	return published
}

func projectFields(fields []Field, keepEntity, keepComponent, usedPatterns, usedIndexes map[string]bool) []Field {
	projected := make([]Field, 0, len(fields))

	for _, field := range fields {
		if field.AdminOnly {
			continue
		}

		field.EntityTypes = filterNames(field.EntityTypes, keepEntity)
		field.LinkEntityTypes = filterNames(field.LinkEntityTypes, keepEntity)
		field.ComponentTypes = filterNames(field.ComponentTypes, keepComponent)

		// A field whose declared target set became empty has nothing left to
		// hold and is dropped with it.
		if targetSetEmptied(field) {
			continue
		}

		if field.MatchPattern != "" {
			usedPatterns[field.MatchPattern] = true
		}
		if field.Index != "" {
			usedIndexes[field.Index] = true
		}
		projected = append(projected, field)
	}

	if len(projected) == 0 {
		return nil
	}
	return projected
}

func targetSetEmptied(field Field) bool {
	switch field.Type {
	case FieldTypeReference:
		return field.EntityTypes != nil && len(field.EntityTypes) == 0
	case FieldTypeComponent:
		return field.ComponentTypes != nil && len(field.ComponentTypes) == 0
	default:
		return false
	}
}

// filterNames keeps the names present in keep, preserving order. A nil input
// (no restriction declared) stays nil; a declared but fully-filtered set
// comes back as an empty non-nil slice so the caller can tell the two apart.
func filterNames(names []string, keep map[string]bool) []string {
	if names == nil {
		return nil
	}
	filtered := make([]string, 0, len(names))
	for _, name := range names {
		if keep[name] {
			filtered = append(filtered, name)
		}
	}
	return filtered
}
