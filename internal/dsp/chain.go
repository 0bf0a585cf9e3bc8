package dsp

// Chain последовательно применяет фильтры
type Chain[T Float] []Filter[T]

// Apply прогоняет отсчет через все фильтры по порядку
func (c Chain[T]) Apply(sample T) T {
	for _, f := range c {
		sample = f.Apply(sample)
	}
	return sample
}
