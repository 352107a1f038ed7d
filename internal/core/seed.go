package core

import (
	"context"
)

const unsplash = "https://images.unsplash.com/"

// DefaultPackages returns the catalog installed on first start.
func DefaultPackages() []Package {
	return []Package{
		{
			ID: 1, Name: "Paris Dream", Destination: "Paris, France", Duration: "7 Days", Price: 2500,
			Image:       unsplash + "photo-1502602898657-3e91760cbb34?w=800",
			Description: "Experience the romance of Paris with visits to Eiffel Tower, Louvre, and charming cafes.",
			Included:    []string{"Hotel", "Breakfast", "City Tour", "Museum Tickets"},
		},
		{
			ID: 2, Name: "Tokyo Adventure", Destination: "Tokyo, Japan", Duration: "10 Days", Price: 3200,
			Image:       unsplash + "photo-1540959733332-eab4deabeeaf?w=800",
			Description: "Discover the blend of traditional and modern in Tokyo with cultural experiences.",
			Included:    []string{"Hotel", "Breakfast", "Temple Visits", "Bullet Train"},
		},
		{
			ID: 3, Name: "Bali Paradise", Destination: "Bali, Indonesia", Duration: "8 Days", Price: 1800,
			Image:       unsplash + "photo-1537996194471-e657df975ab4?w=800",
			Description: "Relax on beautiful beaches and explore tropical paradise in Bali.",
			Included:    []string{"Resort", "All Meals", "Beach Activities", "Spa Session"},
		},
		{
			ID: 4, Name: "New York City", Destination: "New York, USA", Duration: "6 Days", Price: 2800,
			Image:       unsplash + "photo-1496442226666-8d4d0e62e6e9?w=800",
			Description: "Explore the Big Apple with Broadway shows, museums, and iconic landmarks.",
			Included:    []string{"Hotel", "Breakfast", "Broadway Show", "City Pass"},
		},
		{
			ID: 5, Name: "Santorini Escape", Destination: "Santorini, Greece", Duration: "5 Days", Price: 2200,
			Image:       unsplash + "photo-1613395877344-13d4a8e0d49e?w=800",
			Description: "Enjoy stunning sunsets and white-washed buildings in this Greek island paradise.",
			Included:    []string{"Boutique Hotel", "Breakfast", "Wine Tasting", "Sunset Cruise"},
		},
		{
			ID: 6, Name: "Dubai Luxury", Destination: "Dubai, UAE", Duration: "7 Days", Price: 3500,
			Image:       unsplash + "photo-1512453979798-5ea266f8880c?w=800",
			Description: "Experience luxury in Dubai with desert safaris and world-class shopping.",
			Included:    []string{"5-Star Hotel", "All Meals", "Desert Safari", "Burj Khalifa"},
		},
	}
}

// SeedDefaultPackages installs DefaultPackages when the catalog is empty and
// reports how many were inserted.
func (s *Service) SeedDefaultPackages(ctx context.Context) (int, error) {
	inserted := 0
	err := s.run(ctx, "seed_packages", func(ctx context.Context) (string, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if len(tx.Snapshot().ListPackages()) > 0 {
				return nil
			}
			for _, pkg := range DefaultPackages() {
				if _, err := tx.CreatePackage(pkg); err != nil {
					return err
				}
				inserted++
			}
			return nil
		})
		if err != nil {
			inserted = 0
		}
		return "", err
	})
	return inserted, err
}
