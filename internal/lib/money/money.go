// Package money содержит помощники для работы с денежными суммами
// в минорных единицах валюты (копейках). Вся арифметика движка целочисленная,
// перевод в отображаемые единицы происходит только на границе API.
package money

import "fmt"

// MinorPerUnit — количество минорных единиц в одной единице валюты.
const MinorPerUnit = 100

// Display переводит сумму из минорных единиц в строку для отображения,
// например 123456 -> "1234.56". Отрицательные суммы сохраняют знак.
func Display(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/MinorPerUnit, minor%MinorPerUnit)
}

// FromUnits переводит целые единицы валюты в минорные.
func FromUnits(units int64) int64 {
	return units * MinorPerUnit
}
