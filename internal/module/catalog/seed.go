package catalog

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Seed upserts the storefront catalog. Safe to run on every startup.
func Seed(ctx context.Context, repo Repository, log *zap.Logger) error {
	if err := repo.UpsertModifiers(ctx, seedModifiers()); err != nil {
		return fmt.Errorf("seed modifiers: %w", err)
	}
	if err := repo.UpsertPlans(ctx, seedPlans()); err != nil {
		return fmt.Errorf("seed plans: %w", err)
	}
	if err := repo.UpsertItems(ctx, seedItems()); err != nil {
		return fmt.Errorf("seed items: %w", err)
	}
	log.Info("catalog seeded",
		zap.Int("items", len(seedItems())),
		zap.Int("modifiers", len(seedModifiers())),
		zap.Int("plans", len(seedPlans())))
	return nil
}

func seedModifiers() []*Modifier {
	return []*Modifier{
		{ID: "mod_r", Code: "R", Label: "Rapid (same-day)", PriceMultiplier: 1.4, FlatSurchargeCents: 0, Active: true, Description: "Priority processing with same-day delivery"},
		{ID: "mod_c", Code: "C", Label: "Custom (brand style)", PriceMultiplier: 1.0, FlatSurchargeCents: 9900, Active: true, Description: "Custom branding and style application"},
		{ID: "mod_b", Code: "B", Label: "Batch discount", PriceMultiplier: 0.85, FlatSurchargeCents: 0, Active: true, Description: "Discount for bulk orders"},
		{ID: "mod_l_std", Code: "L_STD", Label: "Standard License", PriceMultiplier: 1.0, FlatSurchargeCents: 0, Active: true, Description: "Standard commercial usage rights"},
		{ID: "mod_l_ext", Code: "L_EXT", Label: "Extended License", PriceMultiplier: 1.0, FlatSurchargeCents: 30000, Active: true, Description: "Extended commercial rights for broader usage"},
		{ID: "mod_l_excl", Code: "L_EXCL", Label: "Exclusive License", PriceMultiplier: 1.0, FlatSurchargeCents: 80000, Active: true, Description: "Exclusive rights with no redistribution"},
	}
}

func seedPlans() []*Plan {
	return []*Plan{
		{ID: "plan_starter", Code: "STARTER", Name: "Starter", MonthlyPriceCents: 1999, IncludedSeconds: 600, OverageRatePerSecondCents: 20, Active: true, Description: "Perfect for individuals and small projects"},
		{ID: "plan_pro", Code: "PRO", Name: "Pro", MonthlyPriceCents: 7999, IncludedSeconds: 3000, OverageRatePerSecondCents: 15, Active: true, Description: "Ideal for professionals and growing businesses"},
		{ID: "plan_agency", Code: "AGENCY", Name: "Agency", MonthlyPriceCents: 19900, IncludedSeconds: 10000, OverageRatePerSecondCents: 10, Active: true, Description: "Enterprise-grade solution for agencies and teams"},
	}
}

func seedItems() []*Item {
	return []*Item{
		{ID: "sku_a1_ig", Code: "A1-IG", Name: "Instagram Image 1080p", Category: CategoryImage, BaseResourceSeconds: 60, BasePriceCents: 499, DefaultModifiers: pq.StringArray{"L_STD"}, Active: true, Description: "Social media ready 1080p image"},
		{ID: "sku_a2_bh", Code: "A2-BH", Name: "Blog Hero 2K", Category: CategoryImage, BaseResourceSeconds: 90, BasePriceCents: 999, DefaultModifiers: pq.StringArray{"L_STD"}, Active: true, Description: "High-quality 2K blog header image"},
		{ID: "sku_a3_4k", Code: "A3-4K", Name: "4K Print-Ready", Category: CategoryImage, BaseResourceSeconds: 140, BasePriceCents: 1499, DefaultModifiers: pq.StringArray{"L_STD"}, Active: true, Description: "4K resolution print-ready image"},
		{ID: "sku_a4_br", Code: "A4-BR", Name: "Brand-Styled Image", Category: CategoryImage, BaseResourceSeconds: 180, BasePriceCents: 2499, DefaultModifiers: pq.StringArray{"C", "L_STD"}, Active: true, Description: "Custom brand-styled image creation"},

		{ID: "sku_b1_30soc", Code: "B1-30SOC", Name: "30 Social Creatives", Category: CategoryBundle, BaseResourceSeconds: 1800, BasePriceCents: 7900, DefaultModifiers: pq.StringArray{"B"}, Active: true, Description: "Bundle of 30 social media images"},
		{ID: "sku_b2_90soc", Code: "B2-90SOC", Name: "90 Creatives + Captions", Category: CategoryBundle, BaseResourceSeconds: 5400, BasePriceCents: 19900, DefaultModifiers: pq.StringArray{"B"}, Active: true, Description: "90 social images with AI-generated captions"},

		{ID: "sku_c1_15", Code: "C1-15", Name: "15s Promo/Reel", Category: CategoryVideo, BaseResourceSeconds: 90, BasePriceCents: 2900, DefaultModifiers: pq.StringArray{"L_STD"}, Active: true, Description: "15-second promotional video or reel"},
		{ID: "sku_c2_30", Code: "C2-30", Name: "30s Ad/UGC Clip", Category: CategoryVideo, BaseResourceSeconds: 180, BasePriceCents: 5900, DefaultModifiers: pq.StringArray{"L_STD"}, Active: true, Description: "30-second ad or UGC style video"},
		{ID: "sku_c3_60", Code: "C3-60", Name: "60s Explainer/YouTube", Category: CategoryVideo, BaseResourceSeconds: 360, BasePriceCents: 11900, DefaultModifiers: pq.StringArray{"L_STD"}, Active: true, Description: "60-second explainer or YouTube video"},

		{ID: "sku_d1_vo30", Code: "D1-VO30", Name: "30s Voiceover", Category: CategoryVoice, BaseResourceSeconds: 30, BasePriceCents: 1500, DefaultModifiers: pq.StringArray{"L_STD"}, Active: true, Description: "30-second professional voiceover"},
		{ID: "sku_d2_clone", Code: "D2-CLONE", Name: "Standard Voice Clone", Category: CategoryVoice, BaseResourceSeconds: 200, BasePriceCents: 3900, DefaultModifiers: pq.StringArray{"C"}, Active: true, Description: "Standard quality voice cloning"},
		{ID: "sku_d3_clpro", Code: "D3-CLPRO", Name: "Advanced Voice Clone", Category: CategoryVoice, BaseResourceSeconds: 600, BasePriceCents: 9900, DefaultModifiers: pq.StringArray{"C"}, Active: true, Description: "Professional-grade voice cloning"},
		{ID: "sku_d4_5pk", Code: "D4-5PK", Name: "5x30s Voice Spots", Category: CategoryVoice, BaseResourceSeconds: 150, BasePriceCents: 5900, DefaultModifiers: pq.StringArray{"L_STD"}, Active: true, Description: "Package of 5 x 30-second voiceovers"},

		{ID: "sku_f1_starter", Code: "F1-STARTER", Name: "10 SEO Articles + Images", Category: CategoryContent, BaseResourceSeconds: 1000, BasePriceCents: 4900, DefaultModifiers: pq.StringArray{}, Active: true, Description: "10 SEO-optimized articles with images"},
		{ID: "sku_f2_auth", Code: "F2-AUTH", Name: "40 SEO Articles + Linking", Category: CategoryContent, BaseResourceSeconds: 4000, BasePriceCents: 14900, DefaultModifiers: pq.StringArray{}, Active: true, Description: "40 articles with internal link strategy"},
		{ID: "sku_f3_dominator", Code: "F3-DOMINATOR", Name: "150 Articles + Strategy", Category: CategoryContent, BaseResourceSeconds: 15000, BasePriceCents: 39900, DefaultModifiers: pq.StringArray{}, Active: true, Description: "Complete content domination package"},

		{ID: "sku_e1_ecom25", Code: "E1-ECOM25", Name: "E-commerce Pack (25 SKUs)", Category: CategoryBundle, BaseResourceSeconds: 4500, BasePriceCents: 22500, DefaultModifiers: pq.StringArray{}, Active: true, Description: "25 product SKUs with 3 images each"},
		{ID: "sku_e2_launchkit", Code: "E2-LAUNCHKIT", Name: "Brand Launch Kit", Category: CategoryBundle, BaseResourceSeconds: 3000, BasePriceCents: 44900, DefaultModifiers: pq.StringArray{}, Active: true, Description: "Complete brand launch asset package"},
		{ID: "sku_e3_agency100", Code: "E3-AGENCY100", Name: "Agency Asset Bank (100 assets)", Category: CategoryBundle, BaseResourceSeconds: 10000, BasePriceCents: 59900, DefaultModifiers: pq.StringArray{}, Active: true, Description: "100 mixed assets for agency use"},
	}
}
